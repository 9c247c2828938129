package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// minOrphanAge schützt Verzeichnisse, die gerade von einer Registrierung geschrieben werden
const minOrphanAge = 10 * time.Minute

// StudentLister liefert die registrierten Studenten
type StudentLister interface {
	ListStudents() ([]models.Student, error)
}

// SessionPruner entfernt Erkennungsmengen vergangener Tage
type SessionPruner interface {
	PruneSessions() int
}

// Report fasst einen Bereinigungslauf zusammen
type Report struct {
	RemovedDirs    []string `json:"removed_dirs"`
	PrunedSessions int      `json:"pruned_sessions"`
	Errors         int      `json:"errors"`
}

// CleanupService entfernt verwaiste Korpusverzeichnisse und alte Sitzungsdaten
type CleanupService struct {
	students      StudentLister
	sessions      SessionPruner
	studentsDir   string
	checkInterval time.Duration
	now           func() time.Time
}

// NewCleanupService erstellt einen neuen Cleanup-Service
func NewCleanupService(students StudentLister, sessions SessionPruner, cfg config.CleanupConfig, studentsDir string) *CleanupService {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &CleanupService{
		students:      students,
		sessions:      sessions,
		studentsDir:   studentsDir,
		checkInterval: interval,
		now:           time.Now,
	}
}

// Start führt sofort eine Bereinigung durch und danach im konfigurierten Intervall, bis ctx endet
func (s *CleanupService) Start(ctx context.Context) {
	log.Infof("Cleanup service started (interval %s)", s.checkInterval)

	if _, err := s.RunCleanup(ctx); err != nil {
		log.Errorf("Initial cleanup failed: %v", err)
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Info("Running scheduled cleanup")
			if _, err := s.RunCleanup(ctx); err != nil {
				log.Errorf("Scheduled cleanup failed: %v", err)
			}
		case <-ctx.Done():
			log.Info("Cleanup service stopped")
			return
		}
	}
}

// RunCleanup führt einen einzelnen Bereinigungslauf durch
func (s *CleanupService) RunCleanup(ctx context.Context) (*Report, error) {
	report := &Report{}

	if s.sessions != nil {
		report.PrunedSessions = s.sessions.PruneSessions()
	}

	students, err := s.students.ListStudents()
	if err != nil {
		return report, fmt.Errorf("failed to list students: %w", err)
	}
	known := make(map[string]bool, len(students))
	for _, st := range students {
		known[filepath.Base(enrollment.StudentDir(s.studentsDir, st.RollNumber, st.Name))] = true
	}

	entries, err := os.ReadDir(s.studentsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return report, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	cutoff := s.now().Add(-minOrphanAge)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() || known[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(s.studentsDir, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			log.Warnf("Cleanup: failed to remove orphaned corpus %s: %v", dir, err)
			report.Errors++
			continue
		}
		report.RemovedDirs = append(report.RemovedDirs, dir)
	}

	log.WithFields(log.Fields{
		"removed_dirs":    len(report.RemovedDirs),
		"pruned_sessions": report.PrunedSessions,
		"errors":          report.Errors,
	}).Info("Cleanup completed")
	return report, nil
}
