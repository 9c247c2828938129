package timezone

import (
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	currentLocation *time.Location
	mu              sync.RWMutex
)

// Initialize setzt die Zeitzone. Ein leerer Name fällt auf die TZ-Umgebungsvariable
// und danach auf UTC zurück.
func Initialize(name string) {
	tzName := name
	if tzName == "" {
		tzName = os.Getenv("TZ")
	}
	if tzName == "" {
		tzName = "UTC"
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warnf("Failed to load timezone %s: %v. Falling back to UTC.", tzName, err)
		loc = time.UTC
	} else {
		log.Infof("Successfully initialized timezone to %s", tzName)
	}

	mu.Lock()
	currentLocation = loc
	mu.Unlock()
}

// Location gibt die konfigurierte Zeitzone zurück
func Location() *time.Location {
	mu.RLock()
	loc := currentLocation
	mu.RUnlock()
	if loc == nil {
		Initialize("")
		return Location()
	}
	return loc
}

// Now gibt die aktuelle Zeit in der konfigurierten Zeitzone zurück
func Now() time.Time {
	return time.Now().In(Location())
}

// Date formatiert ein Datum als YYYY-MM-DD in der konfigurierten Zeitzone
func Date(t time.Time) string {
	return t.In(Location()).Format(DateLayout)
}

// Layouts für Datums- und Uhrzeitfelder der Anwesenheitsdatensätze
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
	HourMinute  = "15:04"
)

// ParseDate liest ein Datum im Format YYYY-MM-DD in der konfigurierten Zeitzone
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, Location())
}
