package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"face-attendance-go/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// DefaultTopicPrefix wird verwendet, wenn kein Präfix konfiguriert ist
const DefaultTopicPrefix = "face-attendance"

// Client ist der MQTT-Client für Anwesenheitsereignisse und Bedienbefehle
type Client struct {
	config   config.MQTTConfig
	client   mqtt.Client
	mu       sync.RWMutex
	handlers []CommandHandler
}

// CommandHandler verarbeitet Befehle, die über <prefix>/command/<class>/<action> eintreffen
type CommandHandler interface {
	HandleCommand(class, action string, payload []byte)
}

// CommandHandlerFunc erlaubt einfache Funktionen als Handler
type CommandHandlerFunc func(class, action string, payload []byte)

// HandleCommand ruft f auf
func (f CommandHandlerFunc) HandleCommand(class, action string, payload []byte) {
	f(class, action, payload)
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	return &Client{config: cfg}
}

// Prefix gibt das Topic-Präfix zurück
func (c *Client) Prefix() string {
	return c.config.TopicPrefix
}

// Topic setzt ein Topic unterhalb des Präfixes zusammen
func (c *Client) Topic(parts ...string) string {
	return strings.Join(append([]string{c.config.TopicPrefix}, parts...), "/")
}

// Slug macht einen Klassennamen als Topic-Ebene und Home-Assistant-ID verwendbar
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// StatusTopic ist das Verfügbarkeits-Topic des Dienstes
func (c *Client) StatusTopic() string {
	return c.Topic("status")
}

// RegisterHandler registriert einen Befehls-Handler
func (c *Client) RegisterHandler(handler CommandHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	c.mu.Unlock()
	log.Debug("Registered new MQTT command handler")
}

// Start verbindet den Client mit dem Broker
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	// Last Will: Home Assistant markiert die Sensoren als nicht verfügbar
	opts.SetWill(c.StatusTopic(), "offline", 1, true)

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	log.Info("MQTT client connected successfully")
	return nil
}

// Stop meldet den Dienst ab und trennt die Verbindung
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		if err := c.PublishRetain(c.StatusTopic(), "offline"); err != nil {
			log.Warnf("Failed to publish offline status: %v", err)
		}
		c.client.Disconnect(250)
		log.Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) onConnectHandler(client mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)

	if token := client.Publish(c.StatusTopic(), 1, true, "online"); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to publish online status: %v", token.Error())
	}

	topic := c.Topic("command", "+", "+")
	log.Infof("Subscribing to MQTT topic: %s", topic)
	if token := client.Subscribe(topic, 1, c.messageHandler); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to subscribe to topic %s: %v", topic, token.Error())
	} else {
		log.Infof("Successfully subscribed to topic: %s", topic)
	}
}

func (c *Client) connectionLostHandler(_ mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
}

func (c *Client) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.dispatch(msg.Topic(), msg.Payload())
}

// dispatch zerlegt <prefix>/command/<class>/<action> und ruft die Handler auf
func (c *Client) dispatch(topic string, payload []byte) {
	log.Debugf("Received MQTT message on topic: %s", topic)

	class, action, ok := ParseCommandTopic(c.config.TopicPrefix, topic)
	if !ok {
		log.Warnf("Ignoring MQTT message on unexpected topic %s", topic)
		return
	}

	c.mu.RLock()
	handlers := append([]CommandHandler(nil), c.handlers...)
	c.mu.RUnlock()

	for _, handler := range handlers {
		go handler.HandleCommand(class, action, payload)
	}
}

// ParseCommandTopic liefert Klasse und Aktion eines Befehls-Topics
func ParseCommandTopic(prefix, topic string) (class, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/command/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// PublishMessage veröffentlicht eine Nachricht an ein MQTT-Topic
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	payloadBytes, err := encodePayload(payload)
	if err != nil {
		return err
	}

	token := c.client.Publish(topic, 1, retain, payloadBytes)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, token.Error())
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

func encodePayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return []byte(fmt.Sprintf("%v", p)), nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
		return b, nil
	}
}

// PublishRetain veröffentlicht eine Nachricht mit dem Retain-Flag
func (c *Client) PublishRetain(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, true)
}

// Publish veröffentlicht eine Nachricht ohne Retain-Flag
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, false)
}
