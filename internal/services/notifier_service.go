package services

import (
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/server/sse"

	log "github.com/sirupsen/logrus"
)

// AttendancePublisher ist ein zusätzliches Ziel für Anwesenheitsereignisse, z.B. MQTT
type AttendancePublisher interface {
	PublishAttendance(rec models.AttendanceRecord)
	PublishSummary(summary models.DailySummary)
}

// NotifierService verteilt geschriebene Anwesenheitsdatensätze an SSE-Clients
// und an alle weiteren registrierten Ziele.
type NotifierService struct {
	hub     *sse.Hub
	targets []AttendancePublisher
}

// NewNotifierService erstellt den Dienst. hub darf nil sein.
func NewNotifierService(hub *sse.Hub, targets ...AttendancePublisher) *NotifierService {
	log.Infof("Initializing NotifierService with %d additional targets", len(targets))
	return &NotifierService{hub: hub, targets: targets}
}

// PublishAttendance sendet einen Datensatz an alle Ziele
func (s *NotifierService) PublishAttendance(rec models.AttendanceRecord) {
	if s.hub != nil {
		s.hub.BroadcastAttendance(rec)
	}
	for _, t := range s.targets {
		t.PublishAttendance(rec)
	}
}

// PublishSummary sendet eine Zusammenfassung an alle Ziele
func (s *NotifierService) PublishSummary(summary models.DailySummary) {
	log.Debugf("NotifierService: summary for %s: %d/%d present", summary.Class, summary.Present, summary.Total)
	if s.hub != nil {
		s.hub.BroadcastSummary(summary)
	}
	for _, t := range s.targets {
		t.PublishSummary(summary)
	}
}
