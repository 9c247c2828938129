package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/models"
)

type staticStudents []models.Student

func (s staticStudents) ListStudents() ([]models.Student, error) {
	return s, nil
}

type countingPruner struct{ calls int }

func (p *countingPruner) PruneSessions() int {
	p.calls++
	return 2
}

func TestRunCleanupRemovesOrphans(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"R1_Alice_Smith", "R9_Gone", "R8_Fresh"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	for _, name := range []string{"R1_Alice_Smith", "R9_Gone"} {
		if err := os.Chtimes(filepath.Join(root, name), old, old); err != nil {
			t.Fatal(err)
		}
	}

	pruner := &countingPruner{}
	svc := NewCleanupService(staticStudents{{RollNumber: "R1", Name: "Alice Smith"}}, pruner, config.CleanupConfig{}, root)

	report, err := svc.RunCleanup(context.Background())
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}
	if pruner.calls != 1 || report.PrunedSessions != 2 {
		t.Errorf("pruned %d sessions in %d calls", report.PrunedSessions, pruner.calls)
	}
	if len(report.RemovedDirs) != 1 || filepath.Base(report.RemovedDirs[0]) != "R9_Gone" {
		t.Errorf("removed = %v", report.RemovedDirs)
	}

	tests := []struct {
		name   string
		exists bool
	}{
		{"R1_Alice_Smith", true},
		{"R9_Gone", false},
		{"R8_Fresh", true},
		{"notes.txt", true},
	}
	for _, tt := range tests {
		_, err := os.Stat(filepath.Join(root, tt.name))
		if exists := err == nil; exists != tt.exists {
			t.Errorf("%s exists = %v, want %v", tt.name, exists, tt.exists)
		}
	}
}

func TestRunCleanupMissingRoot(t *testing.T) {
	svc := NewCleanupService(staticStudents{}, nil, config.CleanupConfig{IntervalHours: 2}, filepath.Join(t.TempDir(), "missing"))
	if svc.checkInterval != 2*time.Hour {
		t.Errorf("interval = %s", svc.checkInterval)
	}
	report, err := svc.RunCleanup(context.Background())
	if err != nil || len(report.RemovedDirs) != 0 {
		t.Errorf("RunCleanup() = %+v, %v", report, err)
	}
}

func TestStartStopsWithContext(t *testing.T) {
	svc := NewCleanupService(staticStudents{}, nil, config.CleanupConfig{}, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
