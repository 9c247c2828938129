package attendance

import "sync"

type sessionKey struct {
	class string
	date  string
}

// DetectionSet merkt sich, welche Studenten in der laufenden Kamerasitzung
// für (Klasse, Datum) bereits erkannt wurden
type DetectionSet struct {
	mutex sync.Mutex
	sets  map[sessionKey]map[string]struct{}
}

// NewDetectionSet erstellt eine leere Sitzung
func NewDetectionSet() *DetectionSet {
	return &DetectionSet{sets: make(map[sessionKey]map[string]struct{})}
}

// Add fügt den Studenten hinzu. Gibt false zurück, wenn er bereits enthalten war.
func (d *DetectionSet) Add(class, date, studentID string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	key := sessionKey{class, date}
	set, ok := d.sets[key]
	if !ok {
		set = make(map[string]struct{})
		d.sets[key] = set
	}
	if _, seen := set[studentID]; seen {
		return false
	}
	set[studentID] = struct{}{}
	return true
}

// Contains prüft, ob der Student in dieser Sitzung bereits erkannt wurde
func (d *DetectionSet) Contains(class, date, studentID string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	_, ok := d.sets[sessionKey{class, date}][studentID]
	return ok
}

// Len gibt die Anzahl erkannter Studenten für (Klasse, Datum) zurück
func (d *DetectionSet) Len(class, date string) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.sets[sessionKey{class, date}])
}

// Reset leert die Sitzung für (Klasse, Datum). Gibt zurück, ob sie existierte.
func (d *DetectionSet) Reset(class, date string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	key := sessionKey{class, date}
	if _, ok := d.sets[key]; !ok {
		return false
	}
	d.sets[key] = make(map[string]struct{})
	return true
}

// Clear verwirft alle Sitzungen
func (d *DetectionSet) Clear() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.sets = make(map[sessionKey]map[string]struct{})
}

// Prune entfernt alle Sitzungen mit Datum vor before (YYYY-MM-DD) und gibt deren Anzahl zurück
func (d *DetectionSet) Prune(before string) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	removed := 0
	for key := range d.sets {
		if key.date < before {
			delete(d.sets, key)
			removed++
		}
	}
	return removed
}
