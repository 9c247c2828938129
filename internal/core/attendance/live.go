package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// ErrNoActiveClass wird zurückgegeben, solange keine Klasse ausgewählt wurde
var ErrNoActiveClass = errors.New("no class selected")

// FaceRecognizer trainiert auf einer Klassenliste und erkennt Gesichter in Bildpuffern
type FaceRecognizer interface {
	Train(class string, roster []models.Student) (int, error)
	Recognize(buf []byte, class string, requireSingle bool) (models.RecognitionOutcome, error)
}

// StoredModel ist ein Erkenner, der ein beim Start geladenes Modell mitbringt
type StoredModel interface {
	LoadedModel() (class string, studentIDs []string, ok bool)
}

// Capture ist das Ergebnis einer Aufnahme: das Erkennungsergebnis und,
// falls Studenten erkannt wurden, der Erfassungsdurchlauf
type Capture struct {
	Outcome models.RecognitionOutcome `json:"outcome"`
	Pass    *PassResult               `json:"pass,omitempty"`
}

// LiveSession bündelt die ausgewählte Klasse, den darauf trainierten Erkenner
// und die Erkennungsmenge. Alle Zustandsänderungen laufen über diese Instanz.
// Ändert sich die Klassenliste, wird vor der nächsten Erkennung neu trainiert.
type LiveSession struct {
	manager    *Manager
	recognizer FaceRecognizer

	mutex    sync.Mutex
	class    string
	students int
	stale    bool
	last     *PassResult
}

// NewLiveSession erstellt eine Sitzung ohne ausgewählte Klasse
func NewLiveSession(manager *Manager, recognizer FaceRecognizer) *LiveSession {
	return &LiveSession{manager: manager, recognizer: recognizer}
}

// ActiveClass liefert die ausgewählte Klasse und die Zahl trainierter Studenten
func (s *LiveSession) ActiveClass() (string, int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.class, s.students
}

// LastPass liefert das Ergebnis des letzten Durchlaufs
func (s *LiveSession) LastPass() *PassResult {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.last
}

// SelectClass trainiert den Erkenner auf der Klassenliste. Beim Wechsel der Klasse
// wird die Erkennungsmenge der neuen Klasse zurückgesetzt.
func (s *LiveSession) SelectClass(className string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n, err := s.trainLocked(className)
	if err != nil {
		return 0, err
	}

	if s.class != className {
		s.manager.ResetSession(className)
		s.last = nil
	}
	s.class = className
	s.students = n

	log.WithFields(log.Fields{"class": className, "students": n}).Info("Class selected for attendance")
	return n, nil
}

// Restore übernimmt die Klasse eines gespeicherten Modells als Auswahl, ohne neu zu trainieren.
// Weicht die Klassenliste vom Modell ab, wird vor der nächsten Erkennung trainiert.
func (s *LiveSession) Restore() (string, bool) {
	stored, ok := s.recognizer.(StoredModel)
	if !ok {
		return "", false
	}
	className, ids, ok := stored.LoadedModel()
	if !ok || className == "" {
		return "", false
	}
	roster, err := s.roster(className)
	if err != nil {
		log.Warnf("Stored model for %s not restored: %v", className, err)
		return "", false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.class = className
	s.students = len(ids)
	s.stale = !sameStudents(roster, ids)
	s.last = nil

	log.WithFields(log.Fields{"class": className, "students": len(ids), "stale": s.stale}).Info("Restored stored recognizer model")
	return className, true
}

// Invalidate markiert das Modell als veraltet, wenn eine der Klassen ausgewählt ist
func (s *LiveSession) Invalidate(classes []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.class == "" {
		return
	}
	for _, c := range classes {
		if c == s.class {
			s.stale = true
			log.Debugf("Roster of %s changed, recognizer will be retrained", c)
			return
		}
	}
}

// Recognize erkennt Gesichter für die ausgewählte Klasse ohne Anwesenheit zu schreiben
func (s *LiveSession) Recognize(buf []byte, requireSingle bool) (models.RecognitionOutcome, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.refreshLocked(); err != nil {
		return models.RecognitionOutcome{}, err
	}
	return s.recognizer.Recognize(buf, s.class, requireSingle)
}

// Capture erkennt Gesichter und führt bei Treffern einen Erfassungsdurchlauf aus
func (s *LiveSession) Capture(ctx context.Context, buf []byte, requireSingle bool) (*Capture, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	outcome, err := s.recognizer.Recognize(buf, s.class, requireSingle)
	if err != nil {
		return nil, err
	}

	capture := &Capture{Outcome: outcome}
	if outcome.Kind != models.OutcomeMatches || len(outcome.Matches) == 0 {
		return capture, nil
	}

	pass, err := s.manager.Mark(ctx, s.class, outcome.Matches)
	if err != nil {
		return capture, err
	}
	capture.Pass = pass
	s.last = pass
	return capture, nil
}

// refreshLocked trainiert neu, wenn sich die Klassenliste seit dem Training geändert hat
func (s *LiveSession) refreshLocked() error {
	if s.class == "" {
		return ErrNoActiveClass
	}
	if !s.stale {
		return nil
	}

	n, err := s.trainLocked(s.class)
	if err != nil {
		if errors.Is(err, ErrClassNotFound) {
			s.class = ""
			s.students = 0
		}
		return err
	}
	s.students = n
	log.WithFields(log.Fields{"class": s.class, "students": n}).Info("Recognizer retrained after roster change")
	return nil
}

// trainLocked trainiert auf der aktuellen Klassenliste. Schlägt das Training fehl,
// ist kein Modell mehr vorhanden und die Auswahl wird verworfen.
func (s *LiveSession) trainLocked(className string) (int, error) {
	roster, err := s.roster(className)
	if err != nil {
		return 0, err
	}
	n, err := s.recognizer.Train(className, roster)
	if err != nil {
		s.class = ""
		s.students = 0
		s.stale = false
		return 0, err
	}
	s.stale = false
	return n, nil
}

func (s *LiveSession) roster(className string) ([]models.Student, error) {
	class, err := s.manager.store.GetClassByName(className)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	roster, err := s.manager.store.GetRoster(className)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	return roster, nil
}

// sameStudents vergleicht die Studenten mit Korpus mit den IDs eines Modells
func sameStudents(roster []models.Student, ids []string) bool {
	current := make([]string, 0, len(roster))
	for _, st := range roster {
		if st.HasImages() {
			current = append(current, st.ID)
		}
	}
	if len(current) != len(ids) {
		return false
	}
	sort.Strings(current)
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for i := range current {
		if current[i] != sorted[i] {
			return false
		}
	}
	return true
}

// Reset leert die Erkennungsmenge der ausgewählten Klasse
func (s *LiveSession) Reset() (bool, error) {
	class, _ := s.ActiveClass()
	if class == "" {
		return false, ErrNoActiveClass
	}
	return s.manager.ResetSession(class), nil
}

// Clear verwirft Auswahl, Erkennungsmengen und das letzte Ergebnis
func (s *LiveSession) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.manager.ClearSession()
	s.class = ""
	s.students = 0
	s.stale = false
	s.last = nil
}
