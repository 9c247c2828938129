package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"face-attendance-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// Ereignistypen
const (
	EventAttendance = "attendance"
	EventSummary    = "summary"
	EventSession    = "session"
)

// Client repräsentiert einen einzelnen verbundenen SSE-Client
type Client chan []byte

// Event ist eine Nachricht an die Clients
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// AttendanceData ist der Inhalt eines attendance-Ereignisses
type AttendanceData struct {
	Class      string                  `json:"class"`
	Date       string                  `json:"date"`
	StudentID  string                  `json:"student_id"`
	Status     models.AttendanceStatus `json:"status"`
	InTime     string                  `json:"in_time"`
	OutTime    string                  `json:"out_time"`
	MarkedBy   models.MarkedBy         `json:"marked_by"`
	Confidence float64                 `json:"confidence"`
}

// Hub verwaltet die Menge der aktiven Clients und sendet Broadcasts an sie
type Hub struct {
	clients    map[Client]bool
	broadcast  chan []byte
	register   chan Client
	unregister chan Client
	done       chan struct{}
	mu         sync.Mutex
}

// NewHub erstellt eine neue Hub-Instanz
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 100),
		register:   make(chan Client),
		unregister: make(chan Client),
		done:       make(chan struct{}),
		clients:    make(map[Client]bool),
	}
}

// Run startet die Verarbeitungsschleife des Hubs bis ctx beendet wird
func (h *Hub) Run(ctx context.Context) {
	log.Info("SSE Hub started and running")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()
			log.Info("SSE Hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Infof("SSE client registered. Total clients: %d", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
				log.Infof("SSE client unregistered. Total clients: %d", len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			log.Debugf("Broadcasting message to %d SSE clients", len(h.clients))
			for client := range h.clients {
				select {
				case client <- message:
				default:
					log.Warn("SSE client channel full, removing client")
					delete(h.clients, client)
					close(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount gibt die Anzahl verbundener Clients zurück
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Register registriert einen neuen Client am Hub. Nach dem Ende von Run wird der Client geschlossen.
func (h *Hub) Register(client Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client)
	}
}

// Unregister meldet einen Client vom Hub ab
func (h *Hub) Unregister(client Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sendet eine Nachricht an alle registrierten Clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn("SSE broadcast channel full, message dropped")
	}
}

// BroadcastEvent serialisiert ein Ereignis und sendet es
func (h *Hub) BroadcastEvent(eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Timestamp: time.Now(), Data: data})
	if err != nil {
		log.Errorf("Failed to marshal %s event for SSE: %v", eventType, err)
		return
	}
	h.Broadcast(payload)
}

// BroadcastAttendance sendet einen geschriebenen Anwesenheitsdatensatz
func (h *Hub) BroadcastAttendance(rec models.AttendanceRecord) {
	h.BroadcastEvent(EventAttendance, AttendanceData{
		Class:      rec.ClassName,
		Date:       rec.Date,
		StudentID:  rec.StudentID,
		Status:     rec.Status,
		InTime:     rec.InTime,
		OutTime:    rec.OutTime,
		MarkedBy:   rec.MarkedBy,
		Confidence: rec.Confidence,
	})
}

// BroadcastSummary sendet die Zusammenfassung eines Durchlaufs
func (h *Hub) BroadcastSummary(summary models.DailySummary) {
	h.BroadcastEvent(EventSummary, summary)
}
