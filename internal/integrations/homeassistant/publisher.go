package homeassistant

import (
	"sync"
	"time"

	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// AttendanceEvent ist die Nutzlast eines geschriebenen Anwesenheitsdatensatzes
type AttendanceEvent struct {
	Class      string                  `json:"class"`
	Date       string                  `json:"date"`
	StudentID  string                  `json:"student_id"`
	Status     models.AttendanceStatus `json:"status"`
	InTime     string                  `json:"in_time,omitempty"`
	OutTime    string                  `json:"out_time,omitempty"`
	MarkedBy   models.MarkedBy         `json:"marked_by"`
	Confidence float64                 `json:"confidence"`
	Timestamp  time.Time               `json:"timestamp"`
}

// SummaryState ist der Zustand des Klassensensors
type SummaryState struct {
	models.DailySummary
	UpdatedAt time.Time `json:"updated_at"`
}

// Publisher veröffentlicht Anwesenheitsereignisse via MQTT
type Publisher struct {
	client    MessagePublisher
	discovery *DiscoveryManager
	mu        sync.Mutex
	known     map[string]bool
}

// NewPublisher erstellt einen Publisher. discovery darf nil sein.
func NewPublisher(client MessagePublisher, discovery *DiscoveryManager) *Publisher {
	return &Publisher{
		client:    client,
		discovery: discovery,
		known:     make(map[string]bool),
	}
}

// PublishAttendance veröffentlicht einen einzelnen Datensatz ohne Retain-Flag
func (p *Publisher) PublishAttendance(rec models.AttendanceRecord) {
	event := AttendanceEvent{
		Class:      rec.ClassName,
		Date:       rec.Date,
		StudentID:  rec.StudentID,
		Status:     rec.Status,
		InTime:     rec.InTime,
		OutTime:    rec.OutTime,
		MarkedBy:   rec.MarkedBy,
		Confidence: rec.Confidence,
		Timestamp:  time.Now(),
	}
	if err := p.client.Publish(AttendanceTopic(p.client, rec.ClassName), event); err != nil {
		log.Errorf("Failed to publish attendance for %s: %v", rec.StudentID, err)
	}
}

// PublishSummary veröffentlicht die Tageszusammenfassung einer Klasse mit Retain-Flag.
// Beim ersten Mal wird der Sensor der Klasse angemeldet.
func (p *Publisher) PublishSummary(summary models.DailySummary) {
	if p.discovery != nil {
		p.mu.Lock()
		if !p.known[summary.Class] {
			if err := p.discovery.RegisterClass(summary.Class); err != nil {
				log.Errorf("Failed to register sensor for class %s: %v", summary.Class, err)
			} else {
				p.known[summary.Class] = true
			}
		}
		p.mu.Unlock()
	}

	state := SummaryState{DailySummary: summary, UpdatedAt: time.Now()}
	if err := p.client.PublishRetain(SummaryTopic(p.client, summary.Class), state); err != nil {
		log.Errorf("Failed to publish summary for class %s: %v", summary.Class, err)
	}
}
