package homeassistant

import (
	"fmt"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultDiscoveryPrefix ist das Standard-Präfix von Home Assistant
	DefaultDiscoveryPrefix = "homeassistant"

	// ComponentSensor ist der Komponententyp für Sensoren
	ComponentSensor = "sensor"

	// NodeID gruppiert alle Sensoren dieses Dienstes
	NodeID = "face_attendance"
)

// MessagePublisher ist der Teil des MQTT-Clients, den die Integration benötigt
type MessagePublisher interface {
	Publish(topic string, payload interface{}) error
	PublishRetain(topic string, payload interface{}) error
	Topic(parts ...string) string
	StatusTopic() string
}

// SensorConfig ist die MQTT-Discovery-Konfiguration eines Sensors
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	UnitOfMeasurement   string  `json:"unit_of_measurement,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device sind die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryManager veröffentlicht einen Anwesenheitssensor pro Klasse
type DiscoveryManager struct {
	client MessagePublisher
	prefix string
	device *Device
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(client MessagePublisher, discoveryPrefix string) *DiscoveryManager {
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return &DiscoveryManager{
		client: client,
		prefix: discoveryPrefix,
		device: &Device{
			Identifiers:  []string{NodeID},
			Name:         "Face Attendance",
			Manufacturer: "face-attendance-go",
			Model:        "LBPH Attendance",
		},
	}
}

// SummaryTopic ist das Topic der Tageszusammenfassung einer Klasse
func SummaryTopic(client MessagePublisher, class string) string {
	return client.Topic("summary", mqtt.Slug(class))
}

// AttendanceTopic ist das Topic der einzelnen Anwesenheitsdatensätze einer Klasse
func AttendanceTopic(client MessagePublisher, class string) string {
	return client.Topic("attendance", mqtt.Slug(class))
}

// ConfigTopic ist das Discovery-Topic des Sensors einer Klasse
func (dm *DiscoveryManager) ConfigTopic(class string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", dm.prefix, ComponentSensor, NodeID, mqtt.Slug(class))
}

// SensorFor erstellt die Sensor-Konfiguration einer Klasse
func (dm *DiscoveryManager) SensorFor(class string) SensorConfig {
	summary := SummaryTopic(dm.client, class)
	return SensorConfig{
		Name:                fmt.Sprintf("Attendance %s", class),
		UniqueID:            fmt.Sprintf("%s_%s", NodeID, mqtt.Slug(class)),
		StateTopic:          summary,
		JSONAttributesTopic: summary,
		ValueTemplate:       "{{ value_json.percentage }}",
		UnitOfMeasurement:   "%",
		Icon:                "mdi:account-check",
		AvailabilityTopic:   dm.client.StatusTopic(),
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Device:              dm.device,
	}
}

// RegisterClasses veröffentlicht die Discovery-Konfiguration für alle Klassen
func (dm *DiscoveryManager) RegisterClasses(classes []models.Class) int {
	registered := 0
	for _, class := range classes {
		if err := dm.RegisterClass(class.Name); err != nil {
			log.Errorf("Failed to register sensor for class %s: %v", class.Name, err)
			continue
		}
		registered++
	}
	return registered
}

// RegisterClass veröffentlicht die Discovery-Konfiguration einer Klasse
func (dm *DiscoveryManager) RegisterClass(class string) error {
	log.Infof("Registering Home Assistant sensor for class: %s", class)
	if err := dm.client.PublishRetain(dm.ConfigTopic(class), dm.SensorFor(class)); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// UnregisterClass entfernt den Sensor einer gelöschten Klasse
func (dm *DiscoveryManager) UnregisterClass(class string) error {
	return dm.client.PublishRetain(dm.ConfigTopic(class), "")
}

// PublishAvailability veröffentlicht den Online-Status des Dienstes
func (dm *DiscoveryManager) PublishAvailability(online bool) error {
	status := "offline"
	if online {
		status = "online"
	}
	return dm.client.PublishRetain(dm.client.StatusTopic(), status)
}
