package cli

import (
	"fmt"

	"face-attendance-go/config"
	"face-attendance-go/internal/db"
	"face-attendance-go/internal/db/repository"
	"face-attendance-go/internal/integrations/opencv"
	"face-attendance-go/internal/logger"
	"face-attendance-go/internal/util/timezone"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// app bündelt die Abhängigkeiten, die alle Kommandos teilen
type app struct {
	cfg      *config.Config
	gdb      *gorm.DB
	repo     *repository.SQLiteRepository
	vision   *opencv.Service
	closeLog func()
}

// newApp lädt Konfiguration, Logger, Zeitzone und Datenbank.
// Der Vision-Service wird erst mit withVision geladen.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	closeLog, err := logger.Init(cfg.Log)
	if err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}
	timezone.Initialize(cfg.Server.Timezone)

	gdb, err := db.Open(cfg.DB.File)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &app{
		cfg:      cfg,
		gdb:      gdb,
		repo:     repository.NewSQLiteRepository(gdb),
		closeLog: closeLog,
	}, nil
}

// withVision initialisiert Detektor und Erkenner
func (a *app) withVision() error {
	vision, err := opencv.NewService(a.cfg)
	if err != nil {
		return err
	}
	a.vision = vision
	return nil
}

// Close gibt alle Ressourcen frei
func (a *app) Close() {
	if a.vision != nil {
		if err := a.vision.Close(); err != nil {
			log.Warnf("Failed to close vision service: %v", err)
		}
	}
	if sqlDB, err := a.gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	a.closeLog()
}
