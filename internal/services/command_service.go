package services

import (
	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/integrations/mqtt"

	log "github.com/sirupsen/logrus"
)

// Befehle, die über <prefix>/command/<class>/<action> angenommen werden
const (
	CommandSelect = "select"
	CommandReset  = "reset"
)

// ClassLister liefert alle Klassen
type ClassLister interface {
	ListClasses() ([]models.Class, error)
}

// ClassSelector wählt die Klasse der Live-Sitzung aus
type ClassSelector interface {
	SelectClass(className string) (int, error)
}

// SessionResetter leert die Erkennungsmenge einer Klasse
type SessionResetter interface {
	ResetSession(className string) bool
}

// CommandService setzt MQTT-Befehle in Aktionen der Live-Sitzung um
type CommandService struct {
	classes  ClassLister
	selector ClassSelector
	sessions SessionResetter
}

// NewCommandService erstellt den Dienst
func NewCommandService(classes ClassLister, selector ClassSelector, sessions SessionResetter) *CommandService {
	return &CommandService{classes: classes, selector: selector, sessions: sessions}
}

// ResolveClass findet den Klassennamen zu einem Topic-Slug
func (s *CommandService) ResolveClass(slug string) (string, bool) {
	classes, err := s.classes.ListClasses()
	if err != nil {
		log.Errorf("Failed to list classes for MQTT command: %v", err)
		return "", false
	}
	for _, c := range classes {
		if mqtt.Slug(c.Name) == slug {
			return c.Name, true
		}
	}
	return "", false
}

// HandleCommand implementiert mqtt.CommandHandler
func (s *CommandService) HandleCommand(slug, action string, _ []byte) {
	className, ok := s.ResolveClass(slug)
	if !ok {
		log.Warnf("MQTT command %s for unknown class %s ignored", action, slug)
		return
	}

	entry := log.WithFields(log.Fields{"class": className, "action": action})
	switch action {
	case CommandSelect:
		n, err := s.selector.SelectClass(className)
		if err != nil {
			entry.WithError(err).Error("MQTT select command failed")
			return
		}
		entry.Infof("Class selected via MQTT, %d students trained", n)
	case CommandReset:
		entry.Infof("Session reset via MQTT, existing session: %t", s.sessions.ResetSession(className))
	default:
		entry.Warn("Unknown MQTT command")
	}
}
