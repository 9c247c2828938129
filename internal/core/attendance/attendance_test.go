package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"
)

type recordKey struct{ date, class, student string }

type memStore struct {
	classes map[string]*models.Class
	roster  map[string][]models.Student
	records map[recordKey]models.AttendanceRecord
	writes  int
}

func newMemStore() *memStore {
	s := &memStore{
		classes: map[string]*models.Class{},
		roster:  map[string][]models.Student{},
		records: map[recordKey]models.AttendanceRecord{},
	}
	s.classes["Math"] = &models.Class{
		Name:      "Math",
		Days:      []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		StartTime: "09:00",
		EndTime:   "10:00",
	}
	s.roster["Math"] = []models.Student{
		{ID: "A", Name: "Alice", RollNumber: "1"},
		{ID: "B", Name: "Bob", RollNumber: "2"},
	}
	return s
}

func (s *memStore) GetClassByName(name string) (*models.Class, error) {
	return s.classes[name], nil
}

func (s *memStore) GetRoster(className string) ([]models.Student, error) {
	return s.roster[className], nil
}

func (s *memStore) GetAttendance(date, className, studentID string) (*models.AttendanceRecord, error) {
	rec, ok := s.records[recordKey{date, className, studentID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) WriteAttendance(record *models.AttendanceRecord) (bool, error) {
	key := recordKey{record.Date, record.ClassName, record.StudentID}
	if existing, ok := s.records[key]; ok && existing.Status == models.StatusPresent {
		*record = existing
		return false, nil
	}
	s.records[key] = *record
	s.writes++
	return true, nil
}

func (s *memStore) UpdateOutTime(date, className, studentID, outTime string) (*models.AttendanceRecord, error) {
	key := recordKey{date, className, studentID}
	rec, ok := s.records[key]
	if !ok {
		return nil, errors.New("not found")
	}
	rec.OutTime = outTime
	s.records[key] = rec
	return &rec, nil
}

type recordingPublisher struct {
	records   []models.AttendanceRecord
	summaries []models.DailySummary
}

func (p *recordingPublisher) PublishAttendance(r models.AttendanceRecord) {
	p.records = append(p.records, r)
}

func (p *recordingPublisher) PublishSummary(s models.DailySummary) {
	p.summaries = append(p.summaries, s)
}

// Montag, 4. März 2024
func monday(hour, minute int) time.Time {
	return time.Date(2024, time.March, 4, hour, minute, 0, 0, time.UTC)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestManager(store Store, clock *fakeClock, opts ...Option) *Manager {
	cfg := config.AttendanceConfig{LateWindowMinutes: 60, ClosedWeekdays: []string{"Sunday"}}
	return NewManager(store, cfg, append([]Option{WithClock(clock.now)}, opts...)...)
}

func recognized(ids ...string) []models.RecognitionResult {
	out := make([]models.RecognitionResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.RecognitionResult{StudentID: id, Confidence: 0.7})
	}
	return out
}

func TestStatusByTimeBoundaries(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want models.AttendanceStatus
	}{
		{"early", monday(8, 30), models.StatusPresent},
		{"diff 0", monday(9, 0), models.StatusPresent},
		{"seconds are ignored", monday(9, 0).Add(59 * time.Second), models.StatusPresent},
		{"diff 1", monday(9, 1), models.StatusLate},
		{"diff 60", monday(10, 0), models.StatusLate},
		{"diff 61", monday(10, 1), models.StatusAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StatusByTime(tt.now, "09:00", 60)
			if err != nil {
				t.Fatalf("StatusByTime: %v", err)
			}
			if got != tt.want {
				t.Errorf("StatusByTime() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := StatusByTime(monday(9, 0), "9am", 60); err == nil {
		t.Error("expected error for invalid start time")
	}
}

func TestStatusForClass(t *testing.T) {
	if got := StatusForClass(nil, monday(8, 0), 60); got != models.StatusAbsent {
		t.Errorf("unknown class: got %s", got)
	}
	broken := &models.Class{StartTime: "later"}
	if got := StatusForClass(broken, monday(8, 0), 60); got != models.StatusAbsent {
		t.Errorf("invalid start: got %s", got)
	}
	class := &models.Class{StartTime: "09:00"}
	if got := StatusForClass(class, monday(9, 5), 60); got != models.StatusLate {
		t.Errorf("five minutes late: got %s", got)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in, out string
		want    string
	}{
		{"09:00:00", "10:30:15", "1:30:15"},
		{"09:00:00", "09:00:00", "0:00:00"},
		{"09:00:00", "", NotCalculated},
		{"", "10:00:00", NotCalculated},
		{"10:00:00", "09:00:00", "Error"},
		{"nine", "10:00:00", "Error"},
	}
	for _, tt := range tests {
		if got := Duration(tt.in, tt.out); got != tt.want {
			t.Errorf("Duration(%q, %q) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.AttendanceStatus
		want     models.DailySummary
	}{
		{"empty", nil, models.DailySummary{}},
		{
			"late counts as not present",
			[]models.AttendanceStatus{models.StatusPresent, models.StatusLate, models.StatusAbsent, models.StatusAbsent},
			models.DailySummary{Total: 4, Present: 1, Absent: 3, Percentage: 25},
		},
		{
			"rounded to two decimals",
			[]models.AttendanceStatus{models.StatusPresent, models.StatusAbsent, models.StatusAbsent},
			models.DailySummary{Total: 3, Present: 1, Absent: 2, Percentage: 33.33},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]models.AttendanceRecord, 0, len(tt.statuses))
			for _, s := range tt.statuses {
				records = append(records, models.AttendanceRecord{Status: s})
			}
			got := Summarize("", "", records)
			if got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDetectionSet(t *testing.T) {
	d := NewDetectionSet()

	if d.Reset("Math", "2024-03-04") {
		t.Error("reset of unknown session should report false")
	}
	if !d.Add("Math", "2024-03-04", "A") {
		t.Error("first add should succeed")
	}
	if d.Add("Math", "2024-03-04", "A") {
		t.Error("second add should be rejected")
	}
	if !d.Add("Math", "2024-03-05", "A") || !d.Add("Art", "2024-03-04", "A") {
		t.Error("other keys are independent")
	}
	if !d.Reset("Math", "2024-03-04") || d.Contains("Math", "2024-03-04", "A") {
		t.Error("reset should empty the session")
	}
	if n := d.Prune("2024-03-05"); n != 2 {
		t.Errorf("pruned %d sessions, want 2", n)
	}
	if d.Len("Math", "2024-03-05") != 1 {
		t.Error("current session should survive pruning")
	}
	d.Clear()
	if d.Len("Math", "2024-03-05") != 0 {
		t.Error("clear should drop all sessions")
	}
}

func TestMarkLateFiveMinutesAfterStart(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{monday(9, 5)}
	pub := &recordingPublisher{}
	m := newTestManager(store, clock, WithPublisher(pub))

	res, err := m.Mark(context.Background(), "Math", recognized("A"))
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}

	a := store.records[recordKey{"2024-03-04", "Math", "A"}]
	if a.Status != models.StatusLate || a.MarkedBy != models.MarkedByFaceRecognition || a.InTime != "09:05:00" || a.Confidence != 0.7 {
		t.Errorf("record for A = %+v", a)
	}
	b := store.records[recordKey{"2024-03-04", "Math", "B"}]
	if b.Status != models.StatusAbsent || b.MarkedBy != models.MarkedByAutoAbsent || b.InTime != "" {
		t.Errorf("record for B = %+v", b)
	}
	if res.Late != 1 || res.Absent != 1 || len(res.Records) != 2 {
		t.Errorf("pass result = %+v", res)
	}
	if res.Summary.Total != 2 || res.Summary.Present != 0 || res.Summary.Absent != 2 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(pub.records) != 2 || len(pub.summaries) != 1 {
		t.Errorf("published %d records and %d summaries", len(pub.records), len(pub.summaries))
	}
}

func TestMarkUpgradesAutoAbsent(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{monday(8, 55)}
	m := newTestManager(store, clock)
	ctx := context.Background()

	if _, err := m.Mark(ctx, "Math", recognized("A")); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if got := store.records[recordKey{"2024-03-04", "Math", "B"}]; got.MarkedBy != models.MarkedByAutoAbsent {
		t.Fatalf("B should be provisionally absent, got %+v", got)
	}

	clock.t = monday(9, 10)
	res, err := m.Mark(ctx, "Math", recognized("B"))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if got := store.records[recordKey{"2024-03-04", "Math", "B"}]; got.Status != models.StatusLate {
		t.Errorf("B should be upgraded to late, got %+v", got)
	}
	if len(res.AlreadyMarked) != 1 || res.AlreadyMarked[0] != "A" {
		t.Errorf("A should be already marked, got %v", res.AlreadyMarked)
	}

	clock.t = monday(9, 20)
	writes := store.writes
	res, err = m.Mark(ctx, "Math", nil)
	if err != nil {
		t.Fatalf("third pass: %v", err)
	}
	if store.writes != writes || len(res.AlreadyMarked) != 2 {
		t.Errorf("third pass should not write, got %+v", res)
	}
}

func TestMarkRepeatedAbsenceIsNotRewritten(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{monday(9, 0)}
	m := newTestManager(store, clock)

	for i := 0; i < 3; i++ {
		if _, err := m.Mark(context.Background(), "Math", nil); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	if store.writes != 2 {
		t.Errorf("got %d writes, want 2", store.writes)
	}
}

func TestMarkSessionDedup(t *testing.T) {
	store := newMemStore()
	// 90 Minuten nach Beginn: Erkennung ergibt absent und bleibt damit überschreibbar
	clock := &fakeClock{monday(10, 30)}
	m := newTestManager(store, clock)
	ctx := context.Background()

	first, err := m.Mark(ctx, "Math", recognized("A"))
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Absent != 2 {
		t.Fatalf("first pass = %+v", first)
	}

	second, err := m.Mark(ctx, "Math", recognized("A"))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(second.Records) != 0 || len(second.SessionSkipped) != 1 || second.SessionSkipped[0] != "A" {
		t.Errorf("second pass should skip A, got %+v", second)
	}

	if !m.ResetSession("Math") {
		t.Fatal("ResetSession should report an existing session")
	}
	third, err := m.Mark(ctx, "Math", recognized("A"))
	if err != nil {
		t.Fatalf("third pass: %v", err)
	}
	if len(third.Records) != 1 || third.Records[0].StudentID != "A" {
		t.Errorf("after reset A should be evaluated again, got %+v", third)
	}
}

func TestMarkGuards(t *testing.T) {
	store := newMemStore()
	sunday := &fakeClock{time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)}
	if _, err := newTestManager(store, sunday).Mark(context.Background(), "Math", nil); !errors.Is(err, ErrNoClassToday) {
		t.Errorf("Sunday: got %v", err)
	}

	m := newTestManager(store, &fakeClock{monday(9, 0)})
	if _, err := m.Mark(context.Background(), "Chemistry", nil); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("unknown class: got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Mark(ctx, "Math", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v", err)
	}
}

func TestManualFollowsNoDowngrade(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{monday(8, 50)}
	m := newTestManager(store, clock)

	if _, err := m.Mark(context.Background(), "Math", recognized("A")); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	rec, written, err := m.Manual("Math", "A", models.StatusAbsent)
	if err != nil {
		t.Fatalf("Manual: %v", err)
	}
	if written || rec.Status != models.StatusPresent {
		t.Errorf("present must not be downgraded, got written=%v %+v", written, rec)
	}

	rec, written, err = m.Manual("Math", "B", models.StatusPresent)
	if err != nil || !written || rec.MarkedBy != models.MarkedByManual || rec.InTime != "08:50:00" {
		t.Errorf("manual present for B: %+v, %v, %v", rec, written, err)
	}

	if _, _, err := m.Manual("Math", "B", models.StatusLate); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("late is not a manual status, got %v", err)
	}
	if _, _, err := m.Manual("Art", "B", models.StatusPresent); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("unknown class, got %v", err)
	}
}

func TestManualRejectsStudentsOffRoster(t *testing.T) {
	store := newMemStore()
	store.classes["Art"] = &models.Class{Name: "Art", Days: []string{"Monday"}, StartTime: "13:00", EndTime: "14:00"}
	store.roster["Art"] = []models.Student{{ID: "C", Name: "Carol"}}
	m := newTestManager(store, &fakeClock{monday(9, 5)})

	tests := []struct {
		name      string
		class     string
		studentID string
	}{
		{"unknown id", "Math", "does-not-exist"},
		{"empty id", "Math", ""},
		{"enrolled in another class", "Math", "C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, written, err := m.Manual(tt.class, tt.studentID, models.StatusPresent)
			if !errors.Is(err, ErrStudentNotFound) || rec != nil || written {
				t.Errorf("Manual(%s, %q) = %+v, %v, %v", tt.class, tt.studentID, rec, written, err)
			}
		})
	}
	if store.writes != 0 || len(store.records) != 0 {
		t.Errorf("rejected entries were stored: %d writes", store.writes)
	}
}

func TestManualAbsentBlocksRecognition(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{monday(9, 0)}
	m := newTestManager(store, clock)

	if _, _, err := m.Manual("Math", "A", models.StatusAbsent); err != nil {
		t.Fatalf("Manual: %v", err)
	}
	res, err := m.Mark(context.Background(), "Math", recognized("A"))
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if got := store.records[recordKey{"2024-03-04", "Math", "A"}]; got.MarkedBy != models.MarkedByManual {
		t.Errorf("manual entry was overwritten: %+v", got)
	}
	if len(res.AlreadyMarked) != 1 {
		t.Errorf("already marked = %v", res.AlreadyMarked)
	}
}

func TestMarkOut(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{monday(9, 0)}
	m := newTestManager(store, clock)

	if _, err := m.MarkOut("Math", "A"); err == nil {
		t.Error("MarkOut without record should fail")
	}
	if _, err := m.Mark(context.Background(), "Math", recognized("A")); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	clock.t = monday(10, 15)
	rec, err := m.MarkOut("Math", "A")
	if err != nil {
		t.Fatalf("MarkOut: %v", err)
	}
	if rec.OutTime != "10:15:00" || rec.Status != models.StatusPresent {
		t.Errorf("record = %+v", rec)
	}
	if d := Duration(rec.InTime, rec.OutTime); d != "1:15:00" {
		t.Errorf("Duration = %s", d)
	}
}

type fakeRecognizer struct {
	trained []string
	calls   int
	outcome models.RecognitionOutcome
	err     error
}

func (f *fakeRecognizer) Train(class string, roster []models.Student) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	f.trained = f.trained[:0]
	for _, s := range roster {
		f.trained = append(f.trained, s.ID)
	}
	return len(roster), nil
}

func (f *fakeRecognizer) Recognize(buf []byte, class string, requireSingle bool) (models.RecognitionOutcome, error) {
	if requireSingle && len(f.outcome.Matches) > 1 {
		return models.RecognitionOutcome{Kind: models.OutcomeMultiplePeople, FaceCount: len(f.outcome.Matches)}, nil
	}
	return f.outcome, nil
}

func TestLiveSession(t *testing.T) {
	store := newMemStore()
	store.classes["Art"] = &models.Class{Name: "Art", Days: []string{"Monday"}, StartTime: "13:00", EndTime: "14:00"}
	store.roster["Art"] = []models.Student{{ID: "C", Name: "Carol"}}

	clock := &fakeClock{monday(9, 5)}
	m := newTestManager(store, clock)
	rec := &fakeRecognizer{}
	live := NewLiveSession(m, rec)
	ctx := context.Background()

	if _, err := live.Capture(ctx, nil, false); !errors.Is(err, ErrNoActiveClass) {
		t.Errorf("capture without class: %v", err)
	}
	if _, err := live.SelectClass("Physics"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("unknown class: %v", err)
	}

	n, err := live.SelectClass("Math")
	if err != nil || n != 2 {
		t.Fatalf("SelectClass = %d, %v", n, err)
	}

	rec.outcome = models.RecognitionOutcome{Kind: models.OutcomeNoFace}
	capture, err := live.Capture(ctx, []byte("frame"), false)
	if err != nil || capture.Pass != nil {
		t.Errorf("no face should not run a pass: %+v, %v", capture, err)
	}

	rec.outcome = models.RecognitionOutcome{Kind: models.OutcomeMatches, FaceCount: 2, Matches: recognized("A", "B")}
	capture, err = live.Capture(ctx, []byte("frame"), true)
	if err != nil || capture.Outcome.Kind != models.OutcomeMultiplePeople || capture.Pass != nil {
		t.Errorf("ambiguous frame: %+v, %v", capture, err)
	}

	rec.outcome = models.RecognitionOutcome{Kind: models.OutcomeMatches, FaceCount: 1, Matches: recognized("A")}
	capture, err = live.Capture(ctx, []byte("frame"), true)
	if err != nil || capture.Pass == nil || capture.Pass.Late != 1 {
		t.Fatalf("capture: %+v, %v", capture, err)
	}
	if live.LastPass() != capture.Pass {
		t.Error("last pass not stored")
	}

	if _, err := live.SelectClass("Art"); err != nil {
		t.Fatalf("SelectClass(Art): %v", err)
	}
	if class, students := live.ActiveClass(); class != "Art" || students != 1 || live.LastPass() != nil {
		t.Errorf("after switch: %s, %d, %v", class, students, live.LastPass())
	}

	live.Clear()
	if class, _ := live.ActiveClass(); class != "" {
		t.Errorf("class after clear: %s", class)
	}
	if _, err := live.Reset(); !errors.Is(err, ErrNoActiveClass) {
		t.Errorf("reset without class: %v", err)
	}
}

func TestLiveSessionRetrainsAfterRosterChange(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{monday(9, 5)}
	m := newTestManager(store, clock)
	rec := &fakeRecognizer{outcome: models.RecognitionOutcome{Kind: models.OutcomeNoFace}}
	live := NewLiveSession(m, rec)
	ctx := context.Background()

	if _, err := live.SelectClass("Math"); err != nil {
		t.Fatalf("SelectClass: %v", err)
	}
	if _, err := live.Capture(ctx, []byte("frame"), false); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("train calls = %d, want 1", rec.calls)
	}

	// Ein neuer Student in einer anderen Klasse ändert nichts
	live.Invalidate([]string{"Art"})
	if _, err := live.Recognize([]byte("frame"), false); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if rec.calls != 1 {
		t.Errorf("unrelated roster change retrained: %d calls", rec.calls)
	}

	store.roster["Math"] = append(store.roster["Math"], models.Student{ID: "N", Name: "Nina"})
	live.Invalidate([]string{"Math"})
	if _, err := live.Capture(ctx, []byte("frame"), false); err != nil {
		t.Fatalf("Capture after enrollment: %v", err)
	}
	if rec.calls != 2 || len(rec.trained) != 3 || rec.trained[2] != "N" {
		t.Errorf("after enrollment: %d calls, trained %v", rec.calls, rec.trained)
	}
	if _, students := live.ActiveClass(); students != 3 {
		t.Errorf("students = %d, want 3", students)
	}

	if _, err := live.Capture(ctx, []byte("frame"), false); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if rec.calls != 2 {
		t.Errorf("unchanged roster retrained: %d calls", rec.calls)
	}

	delete(store.classes, "Math")
	live.Invalidate([]string{"Math"})
	if _, err := live.Recognize([]byte("frame"), false); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("deleted class: %v", err)
	}
	if class, _ := live.ActiveClass(); class != "" {
		t.Errorf("deleted class still selected: %s", class)
	}
}

type storedRecognizer struct {
	fakeRecognizer
	class string
	ids   []string
}

func (f *storedRecognizer) LoadedModel() (string, []string, bool) {
	return f.class, f.ids, f.class != ""
}

func TestLiveSessionRestore(t *testing.T) {
	withImages := func(ids ...string) []models.Student {
		out := make([]models.Student, 0, len(ids))
		for _, id := range ids {
			out = append(out, models.Student{ID: id, ImagePaths: []string{id + ".jpg"}})
		}
		return out
	}

	tests := []struct {
		name      string
		model     string
		ids       []string
		roster    []models.Student
		restored  bool
		wantCalls int
	}{
		{"matching roster", "Math", []string{"B", "A"}, withImages("A", "B"), true, 0},
		{"student added", "Math", []string{"A"}, withImages("A", "B"), true, 1},
		{"student without corpus ignored", "Math", []string{"A"}, append(withImages("A"), models.Student{ID: "X"}), true, 0},
		{"class gone", "Physics", []string{"A"}, withImages("A"), false, 0},
		{"no model", "", nil, withImages("A"), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.roster["Math"] = tt.roster
			m := newTestManager(store, &fakeClock{monday(9, 5)})
			rec := &storedRecognizer{
				fakeRecognizer: fakeRecognizer{outcome: models.RecognitionOutcome{Kind: models.OutcomeNoFace}},
				class:          tt.model,
				ids:            tt.ids,
			}
			live := NewLiveSession(m, rec)

			class, ok := live.Restore()
			if ok != tt.restored {
				t.Fatalf("Restore() = %s, %v", class, ok)
			}
			if !ok {
				if _, err := live.Recognize([]byte("frame"), false); !errors.Is(err, ErrNoActiveClass) {
					t.Errorf("Recognize without restore: %v", err)
				}
				return
			}
			if class != tt.model {
				t.Errorf("restored class = %s", class)
			}
			if _, err := live.Recognize([]byte("frame"), false); err != nil {
				t.Fatalf("Recognize: %v", err)
			}
			if rec.calls != tt.wantCalls {
				t.Errorf("train calls = %d, want %d", rec.calls, tt.wantCalls)
			}
		})
	}
}
