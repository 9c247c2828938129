package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"face-attendance-go/internal/core/models"

	"github.com/glebarez/sqlite" // Pure Go SQLite Treiber
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open öffnet die SQLite-Datenbank und führt die Migrationen aus
func Open(file string) (*gorm.DB, error) {
	if file != "" && file != ":memory:" {
		dbDir := filepath.Dir(file)
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormLogger := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second * 2,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", file)
	gdb, err := gorm.Open(sqlite.Open(dsn(file)), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	// SQLite serialisiert Schreibzugriffe ohnehin
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	log.Info("Database connection established successfully")
	return gdb, nil
}

// Migrate legt die Tabellen für Studenten, Klassen und Anwesenheit an
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.Student{},
		&models.Class{},
		&models.AttendanceRecord{},
	); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

func dsn(file string) string {
	if strings.Contains(file, "?") {
		return file
	}
	return file + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
