package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix ist das Präfix für Umgebungsvariablen (z.B. FACE_ATTENDANCE_SERVER_PORT)
const EnvPrefix = "FACE_ATTENDANCE"

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Detector    DetectorConfig    `mapstructure:"detector"`
	Enrollment  EnrollmentConfig  `mapstructure:"enrollment"`
	Screening   ScreeningConfig   `mapstructure:"screening"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Attendance  AttendanceConfig  `mapstructure:"attendance"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Cleanup     CleanupConfig     `mapstructure:"cleanup"`
	Debug       DebugConfig       `mapstructure:"debug"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	DataDir         string   `mapstructure:"data_dir"`
	Timezone        string   `mapstructure:"timezone"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	SessionSecret   string   `mapstructure:"session_secret"`
	DefaultLanguage string   `mapstructure:"default_language"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen
type DBConfig struct {
	File string `mapstructure:"file"` // SQLite-Datei
}

// DetectorConfig enthält die Parameter des Haar-Cascade-Gesichtsdetektors
type DetectorConfig struct {
	CascadeFile  string  `mapstructure:"cascade_file"`
	ScaleFactor  float64 `mapstructure:"scale_factor"`
	MinNeighbors int     `mapstructure:"min_neighbors"`
	MinSize      int     `mapstructure:"min_size"` // Minimale Kantenlänge eines Gesichts in Pixeln
}

// EnrollmentConfig steuert die Erzeugung des Trainingskorpus
type EnrollmentConfig struct {
	StudentsDir string `mapstructure:"students_dir"`
	Variants    int    `mapstructure:"variants"`
	FaceSize    int    `mapstructure:"face_size"`
	Workers     int    `mapstructure:"workers"`
}

// ScreeningConfig enthält die Schwellenwerte der Duplikatprüfung
type ScreeningConfig struct {
	ComparisonsPerStudent int     `mapstructure:"comparisons_per_student"`
	PairThreshold         float64 `mapstructure:"pair_threshold"`  // gilt für jeden Einzelvergleich
	FinalThreshold        float64 `mapstructure:"final_threshold"` // gilt für das Maximum über den Korpus
}

// RecognitionConfig enthält Einstellungen für den LBPH-Erkenner
type RecognitionConfig struct {
	ImagesPerStudent  int     `mapstructure:"images_per_student"`
	DistanceThreshold float64 `mapstructure:"distance_threshold"`
	ModelFile         string  `mapstructure:"model_file"`
}

// AttendanceConfig enthält die Regeln der Anwesenheitserfassung
type AttendanceConfig struct {
	LateWindowMinutes int      `mapstructure:"late_window_minutes"`
	ClosedWeekdays    []string `mapstructure:"closed_weekdays"`
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Broker        string              `mapstructure:"broker"`
	Port          int                 `mapstructure:"port"`
	Username      string              `mapstructure:"username"`
	Password      string              `mapstructure:"password"`
	ClientID      string              `mapstructure:"client_id"`
	TopicPrefix   string              `mapstructure:"topic_prefix"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
}

// HomeAssistantConfig enthält die Konfiguration für die Home Assistant Integration
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// CleanupConfig enthält Bereinigungseinstellungen
type CleanupConfig struct {
	IntervalHours int `mapstructure:"interval_hours"`
}

// DebugConfig steuert die Debug-Ansicht der Erkennungsdurchläufe
type DebugConfig struct {
	MaxFrames int `mapstructure:"max_frames"`
}

// Load lädt die Konfiguration aus .env, Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	// .env ist optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "data")
	v.SetDefault("server.timezone", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.session_secret", "change-me")
	v.SetDefault("server.default_language", "en")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "data/logs/face-attendance.log")

	v.SetDefault("db.file", "data/attendance.db")

	// Haar-Cascade für frontale, gut ausgeleuchtete Gesichter
	v.SetDefault("detector.cascade_file", "haarcascade_frontalface_default.xml")
	v.SetDefault("detector.scale_factor", 1.1)
	v.SetDefault("detector.min_neighbors", 4)
	v.SetDefault("detector.min_size", 30)

	v.SetDefault("enrollment.students_dir", "data/students")
	v.SetDefault("enrollment.variants", 100)
	v.SetDefault("enrollment.face_size", 100)
	v.SetDefault("enrollment.workers", 1)

	v.SetDefault("screening.comparisons_per_student", 20)
	v.SetDefault("screening.pair_threshold", 0.65)
	v.SetDefault("screening.final_threshold", 0.55)

	v.SetDefault("recognition.images_per_student", 20)
	v.SetDefault("recognition.distance_threshold", 80.0)
	v.SetDefault("recognition.model_file", "data/models/face_recognizer_model.yml")

	v.SetDefault("attendance.late_window_minutes", 60)
	v.SetDefault("attendance.closed_weekdays", []string{"Sunday"})

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "face-attendance")
	v.SetDefault("mqtt.topic_prefix", "face-attendance")
	v.SetDefault("mqtt.homeassistant.enabled", false)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")

	v.SetDefault("cleanup.interval_hours", 24)

	v.SetDefault("debug.max_frames", 30)
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	dirs := []string{cfg.Server.DataDir, cfg.Enrollment.StudentsDir}
	if cfg.Log.File != "" {
		dirs = append(dirs, filepath.Dir(cfg.Log.File))
	}
	if cfg.DB.File != "" {
		dirs = append(dirs, filepath.Dir(cfg.DB.File))
	}
	if cfg.Recognition.ModelFile != "" {
		dirs = append(dirs, filepath.Dir(cfg.Recognition.ModelFile))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
