package models

import (
	"image"
	"time"

	"face-attendance-go/internal/util/timezone"

	"gorm.io/datatypes"
)

// AttendanceStatus ist der Status eines Studenten für eine Klasse an einem Tag
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
)

// Valid prüft, ob der Status bekannt ist
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

// MarkedBy beschreibt, wer einen Anwesenheitsdatensatz geschrieben hat
type MarkedBy string

const (
	MarkedByFaceRecognition MarkedBy = "face_recognition"
	MarkedByAutoAbsent      MarkedBy = "auto_absent"
	MarkedByManual          MarkedBy = "manual"
)

// Student ist ein registrierter Student mit seinem Gesichtskorpus
type Student struct {
	ID           string                      `gorm:"primaryKey;size:36" json:"id"`
	Name         string                      `gorm:"index;not null" json:"name"`
	RollNumber   string                      `gorm:"index;not null" json:"roll_number"`
	Classes      datatypes.JSONSlice[string] `json:"classes"`
	ImagePaths   datatypes.JSONSlice[string] `json:"image_paths"` // Reihenfolge entspricht dem Variantenindex
	RegisteredAt time.Time                   `json:"registration_date"`
	CreatedAt    time.Time                   `json:"-"`
	UpdatedAt    time.Time                   `json:"-"`
}

// InClass prüft, ob der Student der Klasse zugeordnet ist
func (s *Student) InClass(className string) bool {
	for _, c := range s.Classes {
		if c == className {
			return true
		}
	}
	return false
}

// HasImages gibt an, ob für den Studenten ein Korpus existiert
func (s *Student) HasImages() bool {
	return len(s.ImagePaths) > 0
}

// Class ist eine Lehrveranstaltung mit wöchentlichem Stundenplan
type Class struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	Name        string                      `gorm:"uniqueIndex;not null" json:"name"`
	Description string                      `json:"description"`
	Days        datatypes.JSONSlice[string] `json:"days"`       // Wochentage, z.B. "Monday"
	StartTime   string                      `json:"start_time"` // HH:MM
	EndTime     string                      `json:"end_time"`   // HH:MM
	CreatedAt   time.Time                   `json:"created_date"`
	UpdatedAt   time.Time                   `json:"-"`
}

// HasDay prüft, ob die Klasse am angegebenen Wochentag stattfindet
func (c *Class) HasDay(day time.Weekday) bool {
	for _, d := range c.Days {
		if d == day.String() {
			return true
		}
	}
	return false
}

// AttendanceRecord ist der Datensatz für (Datum, Klasse, Student)
type AttendanceRecord struct {
	ID         uint             `gorm:"primaryKey" json:"-"`
	Date       string           `gorm:"size:10;not null;uniqueIndex:idx_attendance_key" json:"date"`
	ClassName  string           `gorm:"not null;uniqueIndex:idx_attendance_key" json:"class_name"`
	StudentID  string           `gorm:"size:36;not null;uniqueIndex:idx_attendance_key;index" json:"student_id"`
	Status     AttendanceStatus `gorm:"size:16;not null" json:"status"`
	InTime     string           `json:"in_time"`
	OutTime    string           `json:"out_time"`
	MarkedBy   MarkedBy         `gorm:"size:32" json:"marked_by"`
	Confidence float64          `json:"confidence"`
	CreatedAt  time.Time        `json:"-"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// RecognitionResult ist ein erkanntes Gesicht in einem Bild
type RecognitionResult struct {
	StudentID    string          `json:"student_id"`
	Name         string          `json:"name"`
	RollNumber   string          `json:"roll_number"`
	Confidence   float64         `json:"confidence"`
	FaceLocation image.Rectangle `json:"face_location"`
}

// OutcomeKind unterscheidet die Ergebnisarten eines Erkennungsdurchlaufs
type OutcomeKind int

const (
	OutcomeNoFace OutcomeKind = iota
	OutcomeMultiplePeople
	OutcomeMatches
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNoFace:
		return "no_face"
	case OutcomeMultiplePeople:
		return "multiple_people"
	case OutcomeMatches:
		return "matches"
	}
	return "unknown"
}

// MarshalText sorgt für lesbare Werte im JSON
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// RecognitionOutcome ist das Ergebnis eines Erkennungsdurchlaufs.
// FaceCount ist bei OutcomeMultiplePeople gesetzt, Matches nur bei OutcomeMatches.
type RecognitionOutcome struct {
	Kind      OutcomeKind         `json:"kind"`
	FaceCount int                 `json:"face_count"`
	Matches   []RecognitionResult `json:"matches,omitempty"`
}

// StudentUploadPayload ist der Inhalt eines Upload-Links für Studentenfotos
type StudentUploadPayload struct {
	Type        string    `json:"type"`
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DailyAttendanceEntry ist ein Anwesenheitsdatensatz mit Studentendaten
type DailyAttendanceEntry struct {
	StudentID  string           `json:"student_id"`
	Name       string           `json:"name"`
	RollNumber string           `json:"roll_number"`
	Status     AttendanceStatus `json:"status"`
	InTime     string           `json:"in_time"`
	OutTime    string           `json:"out_time"`
	MarkedBy   MarkedBy         `json:"marked_by"`
	Confidence float64          `json:"confidence"`
}

// ReportRow ist eine Zeile im Anwesenheitsbericht über einen Zeitraum
type ReportRow struct {
	Date        string           `json:"date"`
	Class       string           `json:"class"`
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	RollNumber  string           `json:"roll_number"`
	Status      AttendanceStatus `json:"status"`
	InTime      string           `json:"in_time"`
	OutTime     string           `json:"out_time"`
}

// ClassDates fasst eine Klasse mit ihren Erfassungstagen zusammen (neueste zuerst)
type ClassDates struct {
	Class Class    `json:"class_info"`
	Dates []string `json:"dates"`
}

// ClockMinutes wandelt eine Uhrzeit HH:MM in Minuten seit Mitternacht um
func ClockMinutes(hhmm string) (int, error) {
	t, err := time.Parse(timezone.HourMinute, hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ActiveAt prüft, ob die Klasse zum Zeitpunkt t laut Stundenplan läuft.
// Verglichen wird minutengenau, Start und Ende sind eingeschlossen.
func (c *Class) ActiveAt(t time.Time) bool {
	if !c.HasDay(t.Weekday()) {
		return false
	}
	start, err := ClockMinutes(c.StartTime)
	if err != nil {
		return false
	}
	end, err := ClockMinutes(c.EndTime)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	return start <= now && now <= end
}

// DailySummary fasst die in einem Durchlauf geschriebenen Datensätze einer Klasse zusammen.
// Verspätete Studenten zählen hier nicht als anwesend.
type DailySummary struct {
	Class      string  `json:"class"`
	Date       string  `json:"date"`
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}
