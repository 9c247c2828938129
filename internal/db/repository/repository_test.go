package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/db"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewSQLiteRepository(gdb)
}

func addStudent(t *testing.T, r *SQLiteRepository, name, roll string, classes []string, withImages bool) string {
	t.Helper()
	s := &models.Student{Name: name, RollNumber: roll, Classes: classes}
	if withImages {
		s.ImagePaths = []string{"data/students/" + roll + "/face_000.jpg"}
	}
	id, err := r.AddStudent(s)
	if err != nil {
		t.Fatalf("AddStudent(%s) error = %v", name, err)
	}
	return id
}

func TestAddStudentDuplicateGuard(t *testing.T) {
	r := newTestRepo(t)
	addStudent(t, r, "Asha Rao", "R1", []string{"Math"}, true)
	addStudent(t, r, "Ben Ode", "R2", []string{"Math"}, false)

	tests := []struct {
		name    string
		student models.Student
		wantErr error
	}{
		{"same roll number", models.Student{Name: "Other", RollNumber: "R1"}, ErrDuplicateStudent},
		{"same name different case", models.Student{Name: "  asha RAO ", RollNumber: "R9"}, ErrDuplicateStudent},
		{"existing without images does not block", models.Student{Name: "Ben Ode", RollNumber: "R2"}, nil},
		{"new student", models.Student{Name: "Chen Li", RollNumber: "R3"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.student
			id, err := r.AddStudent(&s)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddStudent() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && id == "" {
				t.Error("expected generated id")
			}
		})
	}
}

func TestStudentExistsAndRoster(t *testing.T) {
	r := newTestRepo(t)
	id := addStudent(t, r, "Asha", "R1", []string{"Math", "Physics"}, true)
	addStudent(t, r, "Ben", "R2", []string{"Physics"}, true)

	exists, gotID, err := r.StudentExists("R1")
	if err != nil || !exists || gotID != id {
		t.Errorf("StudentExists(R1) = %v, %q, %v", exists, gotID, err)
	}
	exists, _, err = r.StudentExists("R404")
	if err != nil || exists {
		t.Errorf("StudentExists(R404) = %v, %v", exists, err)
	}

	roster, err := r.GetRoster("Math")
	if err != nil {
		t.Fatalf("GetRoster() error = %v", err)
	}
	if len(roster) != 1 || roster[0].ID != id {
		t.Errorf("GetRoster(Math) = %+v", roster)
	}
	roster, _ = r.GetRoster("Physics")
	if len(roster) != 2 {
		t.Errorf("GetRoster(Physics) len = %d, want 2", len(roster))
	}
}

func TestWriteAttendanceNoDowngrade(t *testing.T) {
	r := newTestRepo(t)
	key := models.AttendanceRecord{Date: "2024-03-04", ClassName: "Math", StudentID: "s1"}

	present := key
	present.Status = models.StatusPresent
	present.MarkedBy = models.MarkedByFaceRecognition
	present.InTime = "08:55:00"
	present.Confidence = 0.7
	written, err := r.WriteAttendance(&present)
	if err != nil || !written {
		t.Fatalf("first write = %v, %v", written, err)
	}

	absent := key
	absent.Status = models.StatusAbsent
	absent.MarkedBy = models.MarkedByManual
	written, err = r.WriteAttendance(&absent)
	if err != nil {
		t.Fatalf("second write error = %v", err)
	}
	if written {
		t.Error("absent must not overwrite present")
	}

	stored, err := r.GetAttendance(key.Date, key.ClassName, key.StudentID)
	if err != nil || stored == nil {
		t.Fatalf("GetAttendance() = %v, %v", stored, err)
	}
	if stored.Status != models.StatusPresent || stored.InTime != "08:55:00" {
		t.Errorf("stored record = %+v, want present at 08:55:00", stored)
	}
}

func TestWriteAttendanceUpgradesNonPresent(t *testing.T) {
	r := newTestRepo(t)
	key := models.AttendanceRecord{Date: "2024-03-04", ClassName: "Math", StudentID: "s1"}

	steps := []struct {
		status   models.AttendanceStatus
		markedBy models.MarkedBy
		want     bool
	}{
		{models.StatusAbsent, models.MarkedByAutoAbsent, true},
		{models.StatusAbsent, models.MarkedByAutoAbsent, true},
		{models.StatusLate, models.MarkedByFaceRecognition, true},
		{models.StatusPresent, models.MarkedByManual, true},
		{models.StatusLate, models.MarkedByFaceRecognition, false},
	}

	for i, step := range steps {
		rec := key
		rec.Status = step.status
		rec.MarkedBy = step.markedBy
		written, err := r.WriteAttendance(&rec)
		if err != nil {
			t.Fatalf("step %d: error = %v", i, err)
		}
		if written != step.want {
			t.Errorf("step %d: written = %v, want %v", i, written, step.want)
		}
	}

	records, err := r.AttendanceByDate(key.Date)
	if err != nil {
		t.Fatalf("AttendanceByDate() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record per key, got %d", len(records))
	}
	if records[0].Status != models.StatusPresent || records[0].MarkedBy != models.MarkedByManual {
		t.Errorf("final record = %+v", records[0])
	}
}

func TestUpdateOutTime(t *testing.T) {
	r := newTestRepo(t)
	rec := models.AttendanceRecord{Date: "2024-03-04", ClassName: "Math", StudentID: "s1", Status: models.StatusLate, InTime: "09:05:00"}
	if _, err := r.WriteAttendance(&rec); err != nil {
		t.Fatalf("WriteAttendance() error = %v", err)
	}

	updated, err := r.UpdateOutTime("2024-03-04", "Math", "s1", "10:00:00")
	if err != nil {
		t.Fatalf("UpdateOutTime() error = %v", err)
	}
	if updated.OutTime != "10:00:00" || updated.Status != models.StatusLate {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := r.UpdateOutTime("2024-03-04", "Math", "missing", "10:00:00"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("UpdateOutTime(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestAddClassDefaultsAndActive(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.AddClass(&models.Class{Name: "Math"}); err != nil {
		t.Fatalf("AddClass() error = %v", err)
	}
	if _, err := r.AddClass(&models.Class{Name: "Math"}); !errors.Is(err, ErrClassExists) {
		t.Errorf("AddClass(duplicate) error = %v, want ErrClassExists", err)
	}
	if _, err := r.AddClass(&models.Class{Name: "Art", Days: []string{"Saturday"}, StartTime: "13:00", EndTime: "14:30"}); err != nil {
		t.Fatalf("AddClass(Art) error = %v", err)
	}

	math, err := r.GetClassByName("Math")
	if err != nil || math == nil {
		t.Fatalf("GetClassByName() = %v, %v", math, err)
	}
	if len(math.Days) != 5 || math.StartTime != "09:00" || math.EndTime != "10:00" {
		t.Errorf("default schedule = %v %s-%s", math.Days, math.StartTime, math.EndTime)
	}

	monday := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	saturday := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want []string
	}{
		{"monday in session", monday, []string{"Math"}},
		{"monday at end", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), []string{"Math"}},
		{"monday after end", time.Date(2024, 3, 4, 10, 1, 0, 0, time.UTC), nil},
		{"saturday at end", saturday, []string{"Art"}},
		{"sunday", time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, err := r.ActiveClasses(tt.now)
			if err != nil {
				t.Fatalf("ActiveClasses() error = %v", err)
			}
			if len(active) != len(tt.want) {
				t.Fatalf("ActiveClasses() = %d classes, want %d", len(active), len(tt.want))
			}
			for i, c := range active {
				if c.Name != tt.want[i] {
					t.Errorf("active[%d] = %s, want %s", i, c.Name, tt.want[i])
				}
			}
		})
	}

	if err := r.DeleteClass(math.ID); err != nil {
		t.Fatalf("DeleteClass() error = %v", err)
	}
	if err := r.DeleteClass(math.ID); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("DeleteClass(again) error = %v, want ErrClassNotFound", err)
	}
}

func TestReportsAndDeleteStudent(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.AddClass(&models.Class{Name: "Math"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddClass(&models.Class{Name: "Physics"}); err != nil {
		t.Fatal(err)
	}
	asha := addStudent(t, r, "Asha", "R1", []string{"Math", "Physics"}, true)
	ben := addStudent(t, r, "Ben", "R2", []string{"Math"}, true)

	writes := []models.AttendanceRecord{
		{Date: "2024-03-04", ClassName: "Math", StudentID: asha, Status: models.StatusPresent},
		{Date: "2024-03-04", ClassName: "Math", StudentID: ben, Status: models.StatusAbsent},
		{Date: "2024-03-05", ClassName: "Math", StudentID: asha, Status: models.StatusLate},
		{Date: "2024-03-05", ClassName: "Physics", StudentID: asha, Status: models.StatusPresent},
		{Date: "2024-03-05", ClassName: "Math", StudentID: "ghost", Status: models.StatusAbsent},
	}
	for i := range writes {
		if _, err := r.WriteAttendance(&writes[i]); err != nil {
			t.Fatalf("WriteAttendance() error = %v", err)
		}
	}

	daily, err := r.DailyClassAttendance("Math", "2024-03-04")
	if err != nil {
		t.Fatalf("DailyClassAttendance() error = %v", err)
	}
	if len(daily) != 2 || daily[0].Name != "Asha" || daily[1].RollNumber != "R2" {
		t.Errorf("DailyClassAttendance() = %+v", daily)
	}

	withDates, err := r.ClassesWithDates()
	if err != nil {
		t.Fatalf("ClassesWithDates() error = %v", err)
	}
	for _, cd := range withDates {
		switch cd.Class.Name {
		case "Math":
			if len(cd.Dates) != 2 || cd.Dates[0] != "2024-03-05" {
				t.Errorf("Math dates = %v, want newest first", cd.Dates)
			}
		case "Physics":
			if len(cd.Dates) != 1 {
				t.Errorf("Physics dates = %v", cd.Dates)
			}
		}
	}

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter string
		want   int
	}{
		{"all classes", AllClasses, 5},
		{"empty filter", "", 5},
		{"math only", "Math", 4},
		{"physics only", "Physics", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := r.AttendanceReport(from, to, tt.filter)
			if err != nil {
				t.Fatalf("AttendanceReport() error = %v", err)
			}
			if len(rows) != tt.want {
				t.Errorf("AttendanceReport() rows = %d, want %d", len(rows), tt.want)
			}
		})
	}

	rows, _ := r.AttendanceReport(to, to, "Math")
	var unknown int
	for _, row := range rows {
		if row.StudentName == "Unknown" {
			unknown++
		}
	}
	if unknown != 1 {
		t.Errorf("expected one row for an unknown student, got %d", unknown)
	}

	if err := r.DeleteStudent(asha); err != nil {
		t.Fatalf("DeleteStudent() error = %v", err)
	}
	rows, _ = r.AttendanceReport(from, to, AllClasses)
	for _, row := range rows {
		if row.StudentID == asha {
			t.Errorf("attendance of deleted student still present: %+v", row)
		}
	}
	if err := r.DeleteStudent(asha); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("DeleteStudent(again) error = %v, want ErrStudentNotFound", err)
	}
}

func TestEachEnrolledStopsOnError(t *testing.T) {
	r := newTestRepo(t)
	addStudent(t, r, "A", "R1", nil, true)
	addStudent(t, r, "B", "R2", nil, false)
	addStudent(t, r, "C", "R3", nil, true)

	var seen int
	if err := r.EachEnrolled(func(models.Student) error {
		seen++
		return nil
	}); err != nil {
		t.Fatalf("EachEnrolled() error = %v", err)
	}
	if seen != 2 {
		t.Errorf("visited %d students, want 2 with images", seen)
	}

	stop := errors.New("stop")
	seen = 0
	err := r.EachEnrolled(func(models.Student) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) || seen != 1 {
		t.Errorf("EachEnrolled() = %v after %d, want stop after 1", err, seen)
	}
}
