package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoClassToday wird an geschlossenen Wochentagen zurückgegeben
	ErrNoClassToday = errors.New("no classes on this weekday")
	// ErrClassNotFound wird zurückgegeben, wenn die Klasse nicht existiert
	ErrClassNotFound = errors.New("class not found")
	// ErrInvalidStatus wird bei manuellen Einträgen mit unzulässigem Status zurückgegeben
	ErrInvalidStatus = errors.New("manual status must be present or absent")
	// ErrStudentNotFound wird zurückgegeben, wenn der Student nicht zur Klasse gehört
	ErrStudentNotFound = errors.New("student not on class roster")
)

// Store ist der Teil der Persistenz, den die Anwesenheitslogik benötigt
type Store interface {
	GetClassByName(name string) (*models.Class, error)
	GetRoster(className string) ([]models.Student, error)
	GetAttendance(date, className, studentID string) (*models.AttendanceRecord, error)
	WriteAttendance(record *models.AttendanceRecord) (bool, error)
	UpdateOutTime(date, className, studentID, outTime string) (*models.AttendanceRecord, error)
}

// Publisher verteilt geschriebene Datensätze und Zusammenfassungen
type Publisher interface {
	PublishAttendance(record models.AttendanceRecord)
	PublishSummary(summary models.DailySummary)
}

// PassResult ist das Ergebnis eines Erfassungsdurchlaufs über die Klassenliste
type PassResult struct {
	Class          string                    `json:"class"`
	Date           string                    `json:"date"`
	Status         models.AttendanceStatus   `json:"status_by_time"`
	Records        []models.AttendanceRecord `json:"records"`
	AlreadyMarked  []string                  `json:"already_marked"`
	SessionSkipped []string                  `json:"session_skipped"`
	Present        int                       `json:"present"`
	Late           int                       `json:"late"`
	Absent         int                       `json:"absent"`
	Summary        models.DailySummary       `json:"summary"`
}

// Manager setzt Erkennungsergebnisse in Anwesenheitsdatensätze um
type Manager struct {
	store      Store
	session    *DetectionSet
	publisher  Publisher
	lateWindow int
	closed     map[time.Weekday]bool
	now        func() time.Time
}

// Option konfiguriert den Manager
type Option func(*Manager)

// WithClock ersetzt die Uhr, z.B. in Tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPublisher setzt den Empfänger für geschriebene Datensätze
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// NewManager erstellt den Manager
func NewManager(store Store, cfg config.AttendanceConfig, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		session:    NewDetectionSet(),
		lateWindow: cfg.LateWindowMinutes,
		closed:     parseWeekdays(cfg.ClosedWeekdays),
		now:        timezone.Now,
	}
	if m.lateWindow <= 0 {
		m.lateWindow = DefaultLateWindow
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func parseWeekdays(names []string) map[time.Weekday]bool {
	days := make(map[time.Weekday]bool)
	for _, name := range names {
		for d := time.Sunday; d <= time.Saturday; d++ {
			if strings.EqualFold(strings.TrimSpace(name), d.String()) {
				days[d] = true
			}
		}
	}
	return days
}

// Session gibt die Erkennungsmenge der laufenden Sitzung zurück
func (m *Manager) Session() *DetectionSet {
	return m.session
}

// Now liefert die aktuelle Zeit der Manager-Uhr
func (m *Manager) Now() time.Time {
	return m.now()
}

// Today liefert das heutige Datum als YYYY-MM-DD
func (m *Manager) Today() string {
	return m.now().Format(timezone.DateLayout)
}

// AlreadyMarked gibt an, ob ein Datensatz als endgültig gilt. Automatisch gesetzte
// Abwesenheit ist vorläufig und darf durch eine spätere Erkennung ersetzt werden.
func AlreadyMarked(rec *models.AttendanceRecord) bool {
	if rec == nil {
		return false
	}
	if rec.MarkedBy == models.MarkedByManual {
		return true
	}
	return rec.Status == models.StatusPresent || rec.Status == models.StatusLate
}

// Mark führt einen Erfassungsdurchlauf für die Klassenliste aus. Erkannte Studenten
// erhalten den Status nach Uhrzeit, alle übrigen werden als abwesend eingetragen.
func (m *Manager) Mark(ctx context.Context, className string, recognized []models.RecognitionResult) (*PassResult, error) {
	now := m.now()
	if m.closed[now.Weekday()] {
		return nil, ErrNoClassToday
	}

	class, err := m.store.GetClassByName(className)
	if err != nil {
		return nil, fmt.Errorf("failed to load class: %w", err)
	}
	if class == nil {
		return nil, ErrClassNotFound
	}

	roster, err := m.store.GetRoster(className)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	date := now.Format(timezone.DateLayout)
	inTime := now.Format(timezone.ClockLayout)
	status := StatusForClass(class, now, m.lateWindow)

	hits := make(map[string]models.RecognitionResult, len(recognized))
	for _, r := range recognized {
		if prev, ok := hits[r.StudentID]; !ok || r.Confidence > prev.Confidence {
			hits[r.StudentID] = r
		}
	}

	result := &PassResult{Class: className, Date: date, Status: status}

	for _, student := range roster {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		existing, err := m.store.GetAttendance(date, className, student.ID)
		if err != nil {
			return result, fmt.Errorf("failed to read attendance for %s: %w", student.ID, err)
		}
		if AlreadyMarked(existing) {
			result.AlreadyMarked = append(result.AlreadyMarked, student.ID)
			continue
		}

		hit, isRecognized := hits[student.ID]
		var record models.AttendanceRecord
		switch {
		case isRecognized && !m.session.Add(className, date, student.ID):
			result.SessionSkipped = append(result.SessionSkipped, student.ID)
			continue

		case isRecognized:
			record = models.AttendanceRecord{
				Date:       date,
				ClassName:  className,
				StudentID:  student.ID,
				Status:     status,
				InTime:     inTime,
				MarkedBy:   models.MarkedByFaceRecognition,
				Confidence: hit.Confidence,
			}

		case existing != nil:
			// bereits vorläufig abwesend
			continue

		default:
			record = models.AttendanceRecord{
				Date:      date,
				ClassName: className,
				StudentID: student.ID,
				Status:    models.StatusAbsent,
				MarkedBy:  models.MarkedByAutoAbsent,
			}
		}

		written, err := m.store.WriteAttendance(&record)
		if err != nil {
			return result, err
		}
		if !written {
			result.AlreadyMarked = append(result.AlreadyMarked, student.ID)
			continue
		}

		result.Records = append(result.Records, record)
		switch record.Status {
		case models.StatusPresent:
			result.Present++
		case models.StatusLate:
			result.Late++
		default:
			result.Absent++
		}

		log.WithFields(log.Fields{
			"class":      className,
			"student_id": student.ID,
			"status":     record.Status,
			"marked_by":  record.MarkedBy,
		}).Info("Attendance recorded")
	}

	result.Summary = Summarize(className, date, result.Records)
	m.publish(result)

	log.WithFields(log.Fields{
		"class":          className,
		"present":        result.Present,
		"late":           result.Late,
		"absent":         result.Absent,
		"already_marked": len(result.AlreadyMarked),
		"session_skip":   len(result.SessionSkipped),
	}).Info("Attendance pass finished")

	return result, nil
}

func (m *Manager) publish(result *PassResult) {
	if m.publisher == nil || len(result.Records) == 0 {
		return
	}
	for _, rec := range result.Records {
		m.publisher.PublishAttendance(rec)
	}
	m.publisher.PublishSummary(result.Summary)
}

// Manual setzt den Status eines Studenten durch einen Bediener. Es gilt dieselbe
// Regel wie bei automatischen Einträgen: ein vorhandenes present bleibt bestehen.
func (m *Manager) Manual(className, studentID string, status models.AttendanceStatus) (*models.AttendanceRecord, bool, error) {
	if status != models.StatusPresent && status != models.StatusAbsent {
		return nil, false, ErrInvalidStatus
	}

	class, err := m.store.GetClassByName(className)
	if err != nil {
		return nil, false, err
	}
	if class == nil {
		return nil, false, ErrClassNotFound
	}
	roster, err := m.store.GetRoster(className)
	if err != nil {
		return nil, false, err
	}
	if !onRoster(roster, studentID) {
		return nil, false, ErrStudentNotFound
	}

	now := m.now()
	record := models.AttendanceRecord{
		Date:      now.Format(timezone.DateLayout),
		ClassName: className,
		StudentID: studentID,
		Status:    status,
		MarkedBy:  models.MarkedByManual,
	}
	if status == models.StatusPresent {
		record.InTime = now.Format(timezone.ClockLayout)
		record.Confidence = 1
	}

	written, err := m.store.WriteAttendance(&record)
	if err != nil {
		return nil, false, err
	}

	log.WithFields(log.Fields{
		"class":      className,
		"student_id": studentID,
		"status":     status,
		"marked_by":  models.MarkedByManual,
		"written":    written,
	}).Info("Manual attendance entry")

	if written && m.publisher != nil {
		m.publisher.PublishAttendance(record)
	}
	return &record, written, nil
}

func onRoster(roster []models.Student, studentID string) bool {
	for _, st := range roster {
		if st.ID == studentID {
			return true
		}
	}
	return false
}

// MarkOut setzt die Ausgangszeit eines vorhandenen Datensatzes auf jetzt
func (m *Manager) MarkOut(className, studentID string) (*models.AttendanceRecord, error) {
	now := m.now()
	record, err := m.store.UpdateOutTime(now.Format(timezone.DateLayout), className, studentID, now.Format(timezone.ClockLayout))
	if err != nil {
		return nil, err
	}
	if m.publisher != nil {
		m.publisher.PublishAttendance(*record)
	}
	return record, nil
}

// ResetSession leert die Erkennungsmenge der Klasse für heute
func (m *Manager) ResetSession(className string) bool {
	return m.session.Reset(className, m.Today())
}

// ClearSession verwirft alle Erkennungsmengen
func (m *Manager) ClearSession() {
	m.session.Clear()
}

// PruneSessions entfernt Erkennungsmengen vergangener Tage
func (m *Manager) PruneSessions() int {
	return m.session.Prune(m.Today())
}
