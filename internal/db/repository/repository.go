package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/util/timezone"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateStudent wird zurückgegeben, wenn Rollennummer oder Name bereits mit Bildern registriert sind
	ErrDuplicateStudent = errors.New("student already registered")
	ErrStudentNotFound  = errors.New("student not found")
	ErrClassExists      = errors.New("class already exists")
	ErrClassNotFound    = errors.New("class not found")
	ErrRecordNotFound   = errors.New("attendance record not found")
)

// AllClasses ist der Filterwert für Berichte über alle Klassen
const AllClasses = "All Classes"

// writeAttempts begrenzt die Wiederholungen bei konkurrierenden Schreibzugriffen
const writeAttempts = 3

// Standard-Stundenplan für neue Klassen ohne Angaben
var (
	DefaultDays      = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	DefaultStartTime = "09:00"
	DefaultEndTime   = "10:00"
)

// Repository definiert die Schnittstelle für die Datenbank-Operationen
type Repository interface {
	// Studenten
	AddStudent(student *models.Student) (string, error)
	GetStudent(id string) (*models.Student, error)
	ListStudents() ([]models.Student, error)
	StudentExists(rollNumber string) (bool, string, error)
	GetRoster(className string) ([]models.Student, error)
	UpdateImagePaths(id string, paths []string) error
	DeleteStudent(id string) error
	EachEnrolled(fn func(models.Student) error) error

	// Klassen
	AddClass(class *models.Class) (string, error)
	GetClass(id string) (*models.Class, error)
	GetClassByName(name string) (*models.Class, error)
	ListClasses() ([]models.Class, error)
	DeleteClass(id string) error
	ActiveClasses(now time.Time) ([]models.Class, error)

	// Anwesenheit
	GetAttendance(date, className, studentID string) (*models.AttendanceRecord, error)
	WriteAttendance(record *models.AttendanceRecord) (bool, error)
	UpdateOutTime(date, className, studentID, outTime string) (*models.AttendanceRecord, error)
	AttendanceByDate(date string) ([]models.AttendanceRecord, error)
	DailyClassAttendance(className, date string) ([]models.DailyAttendanceEntry, error)
	ClassesWithDates() ([]models.ClassDates, error)
	AttendanceReport(from, to time.Time, classFilter string) ([]models.ReportRow, error)
}

// SQLiteRepository implementiert die Repository-Schnittstelle für SQLite
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository erstellt eine neue SQLite-Repository-Instanz
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Studenten

// AddStudent legt einen Studenten an. Ein bereits registrierter Student mit Bildern
// und gleicher Rollennummer oder gleichem Namen blockiert die Registrierung.
func (r *SQLiteRepository) AddStudent(student *models.Student) (string, error) {
	roll := strings.TrimSpace(student.RollNumber)
	name := strings.ToLower(strings.TrimSpace(student.Name))

	if roll != "" || name != "" {
		var existing []models.Student
		if err := r.db.Find(&existing).Error; err != nil {
			return "", fmt.Errorf("failed to load students: %w", err)
		}
		for _, s := range existing {
			if !s.HasImages() {
				continue
			}
			sameRoll := roll != "" && s.RollNumber == roll
			sameName := name != "" && strings.ToLower(strings.TrimSpace(s.Name)) == name
			if sameRoll || sameName {
				log.WithFields(log.Fields{
					"name":        s.Name,
					"roll_number": s.RollNumber,
				}).Warn("Student already registered")
				return "", ErrDuplicateStudent
			}
		}
	}

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.RegisteredAt.IsZero() {
		student.RegisteredAt = timezone.Now()
	}
	if err := r.db.Create(student).Error; err != nil {
		return "", fmt.Errorf("failed to create student: %w", err)
	}
	return student.ID, nil
}

// GetStudent holt einen Studenten anhand seiner ID
func (r *SQLiteRepository) GetStudent(id string) (*models.Student, error) {
	var student models.Student
	result := r.db.First(&student, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &student, nil
}

// ListStudents holt alle Studenten sortiert nach Namen
func (r *SQLiteRepository) ListStudents() ([]models.Student, error) {
	var students []models.Student
	if err := r.db.Order("name").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

// StudentExists prüft, ob eine Rollennummer bereits vergeben ist
func (r *SQLiteRepository) StudentExists(rollNumber string) (bool, string, error) {
	var student models.Student
	result := r.db.Where("roll_number = ?", rollNumber).Limit(1).Find(&student)
	if result.Error != nil {
		return false, "", result.Error
	}
	if result.RowsAffected == 0 {
		return false, "", nil
	}
	return true, student.ID, nil
}

// GetRoster holt alle Studenten einer Klasse
func (r *SQLiteRepository) GetRoster(className string) ([]models.Student, error) {
	students, err := r.ListStudents()
	if err != nil {
		return nil, err
	}
	roster := make([]models.Student, 0, len(students))
	for _, s := range students {
		if s.InClass(className) {
			roster = append(roster, s)
		}
	}
	return roster, nil
}

// UpdateImagePaths ersetzt die Korpuspfade eines Studenten
func (r *SQLiteRepository) UpdateImagePaths(id string, paths []string) error {
	result := r.db.Model(&models.Student{}).Where("id = ?", id).
		Update("image_paths", datatypes.JSONSlice[string](paths))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// DeleteStudent löscht einen Studenten samt seiner Anwesenheitsdatensätze
func (r *SQLiteRepository) DeleteStudent(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&models.AttendanceRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete attendance records: %w", err)
		}
		result := tx.Delete(&models.Student{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStudentNotFound
		}
		return nil
	})
}

// EachEnrolled ruft fn für jeden Studenten mit Korpus auf, in Stapeln von 50.
// Ein Fehler aus fn beendet die Iteration und wird zurückgegeben.
func (r *SQLiteRepository) EachEnrolled(fn func(models.Student) error) error {
	var batch []models.Student
	result := r.db.Model(&models.Student{}).FindInBatches(&batch, 50, func(tx *gorm.DB, _ int) error {
		for _, s := range batch {
			if !s.HasImages() {
				continue
			}
			if err := fn(s); err != nil {
				return err
			}
		}
		return nil
	})
	return result.Error
}

// Klassen

// AddClass legt eine Klasse an, ohne Stundenplan gilt Mo-Fr 09:00-10:00
func (r *SQLiteRepository) AddClass(class *models.Class) (string, error) {
	existing, err := r.GetClassByName(class.Name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrClassExists
	}

	if len(class.Days) == 0 {
		class.Days = append(class.Days, DefaultDays...)
	}
	if class.StartTime == "" {
		class.StartTime = DefaultStartTime
	}
	if class.EndTime == "" {
		class.EndTime = DefaultEndTime
	}
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if err := r.db.Create(class).Error; err != nil {
		return "", fmt.Errorf("failed to create class: %w", err)
	}
	return class.ID, nil
}

// GetClass holt eine Klasse anhand ihrer ID
func (r *SQLiteRepository) GetClass(id string) (*models.Class, error) {
	var class models.Class
	result := r.db.First(&class, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &class, nil
}

// GetClassByName holt eine Klasse anhand ihres Namens
func (r *SQLiteRepository) GetClassByName(name string) (*models.Class, error) {
	var class models.Class
	result := r.db.Where("name = ?", name).First(&class)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &class, nil
}

// ListClasses holt alle Klassen
func (r *SQLiteRepository) ListClasses() ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.Order("start_time, name").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

// DeleteClass löscht eine Klasse
func (r *SQLiteRepository) DeleteClass(id string) error {
	result := r.db.Delete(&models.Class{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClassNotFound
	}
	return nil
}

// ActiveClasses liefert die Klassen, die zum Zeitpunkt now laut Stundenplan laufen
func (r *SQLiteRepository) ActiveClasses(now time.Time) ([]models.Class, error) {
	classes, err := r.ListClasses()
	if err != nil {
		return nil, err
	}
	active := make([]models.Class, 0, len(classes))
	for i := range classes {
		if classes[i].ActiveAt(now) {
			active = append(active, classes[i])
		}
	}
	return active, nil
}

// Anwesenheit

// GetAttendance holt den Datensatz für (Datum, Klasse, Student)
func (r *SQLiteRepository) GetAttendance(date, className, studentID string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	result := r.db.Where("date = ? AND class_name = ? AND student_id = ?", date, className, studentID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

// WriteAttendance schreibt einen Datensatz, sofern für den Schlüssel noch keiner
// existiert oder der vorhandene nicht "present" ist. Gibt zurück, ob geschrieben wurde.
// Konkurrierende Schreiber prüfen die Regel bei jedem Versuch erneut.
func (r *SQLiteRepository) WriteAttendance(record *models.AttendanceRecord) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		written, err := r.writeAttendanceOnce(record)
		if err == nil {
			return written, nil
		}
		lastErr = err
		log.WithError(err).WithFields(log.Fields{
			"date":       record.Date,
			"class":      record.ClassName,
			"student_id": record.StudentID,
			"attempt":    attempt,
		}).Debug("Attendance write conflict, re-checking")
	}
	return false, fmt.Errorf("failed to write attendance: %w", lastErr)
}

func (r *SQLiteRepository) writeAttendanceOnce(record *models.AttendanceRecord) (bool, error) {
	written := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.AttendanceRecord
		err := tx.Where("date = ? AND class_name = ? AND student_id = ?",
			record.Date, record.ClassName, record.StudentID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record.ID = 0
			if err := tx.Create(record).Error; err != nil {
				return err
			}
			written = true
			return nil
		case err != nil:
			return err
		}

		if existing.Status == models.StatusPresent {
			*record = existing
			return nil
		}

		if err := tx.Model(&existing).Updates(map[string]interface{}{
			"status":     record.Status,
			"in_time":    record.InTime,
			"out_time":   record.OutTime,
			"marked_by":  record.MarkedBy,
			"confidence": record.Confidence,
		}).Error; err != nil {
			return err
		}
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		written = true
		return nil
	})
	return written, err
}

// UpdateOutTime setzt die Ausgangszeit eines vorhandenen Datensatzes, der Status bleibt unverändert
func (r *SQLiteRepository) UpdateOutTime(date, className, studentID, outTime string) (*models.AttendanceRecord, error) {
	record, err := r.GetAttendance(date, className, studentID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	if err := r.db.Model(record).Update("out_time", outTime).Error; err != nil {
		return nil, fmt.Errorf("failed to update out time: %w", err)
	}
	record.OutTime = outTime
	return record, nil
}

// AttendanceByDate holt alle Datensätze eines Tages
func (r *SQLiteRepository) AttendanceByDate(date string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	if err := r.db.Where("date = ?", date).Order("class_name, student_id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DailyClassAttendance holt die Datensätze einer Klasse an einem Tag mit Studentendaten
func (r *SQLiteRepository) DailyClassAttendance(className, date string) ([]models.DailyAttendanceEntry, error) {
	var records []models.AttendanceRecord
	if err := r.db.Where("date = ? AND class_name = ?", date, className).Find(&records).Error; err != nil {
		return nil, err
	}

	students, err := r.studentsByID(records)
	if err != nil {
		return nil, err
	}

	entries := make([]models.DailyAttendanceEntry, 0, len(records))
	for _, rec := range records {
		entry := models.DailyAttendanceEntry{
			StudentID:  rec.StudentID,
			Name:       "Unknown",
			RollNumber: "Unknown",
			Status:     rec.Status,
			InTime:     rec.InTime,
			OutTime:    rec.OutTime,
			MarkedBy:   rec.MarkedBy,
			Confidence: rec.Confidence,
		}
		if s, ok := students[rec.StudentID]; ok {
			entry.Name = s.Name
			entry.RollNumber = s.RollNumber
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ClassesWithDates liefert jede Klasse mit den Tagen, an denen Anwesenheit erfasst wurde
func (r *SQLiteRepository) ClassesWithDates() ([]models.ClassDates, error) {
	classes, err := r.ListClasses()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ClassName string
		Date      string
	}
	if err := r.db.Model(&models.AttendanceRecord{}).
		Distinct("class_name", "date").
		Order("date DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	dates := make(map[string][]string)
	for _, row := range rows {
		dates[row.ClassName] = append(dates[row.ClassName], row.Date)
	}

	result := make([]models.ClassDates, 0, len(classes))
	for _, c := range classes {
		d := dates[c.Name]
		if d == nil {
			d = []string{}
		}
		result = append(result, models.ClassDates{Class: c, Dates: d})
	}
	return result, nil
}

// AttendanceReport erstellt einen Bericht über den Zeitraum [from, to].
// Ein leerer Filter oder AllClasses schließt alle Klassen ein.
func (r *SQLiteRepository) AttendanceReport(from, to time.Time, classFilter string) ([]models.ReportRow, error) {
	query := r.db.Where("date BETWEEN ? AND ?", timezone.Date(from), timezone.Date(to))
	if classFilter != "" && classFilter != AllClasses {
		query = query.Where("class_name = ?", classFilter)
	}

	var records []models.AttendanceRecord
	if err := query.Order("date, class_name").Find(&records).Error; err != nil {
		return nil, err
	}

	students, err := r.studentsByID(records)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ReportRow, 0, len(records))
	for _, rec := range records {
		row := models.ReportRow{
			Date:        rec.Date,
			Class:       rec.ClassName,
			StudentID:   rec.StudentID,
			StudentName: "Unknown",
			RollNumber:  "Unknown",
			Status:      rec.Status,
			InTime:      rec.InTime,
			OutTime:     rec.OutTime,
		}
		if s, ok := students[rec.StudentID]; ok {
			row.StudentName = s.Name
			row.RollNumber = s.RollNumber
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *SQLiteRepository) studentsByID(records []models.AttendanceRecord) (map[string]models.Student, error) {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.StudentID)
	}
	result := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var students []models.Student
	if err := r.db.Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, err
	}
	for _, s := range students {
		result[s.ID] = s
	}
	return result, nil
}
