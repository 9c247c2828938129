package mqtt

import (
	"testing"
	"time"

	"face-attendance-go/config"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Math", "math"},
		{" Physics Lab ", "physics_lab"},
		{"CS-101/A", "cs-101_a"},
		{"Grade#1+", "grade_1_"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCommandTopic(t *testing.T) {
	tests := []struct {
		topic      string
		wantClass  string
		wantAction string
		wantOK     bool
	}{
		{"face-attendance/command/math/reset", "math", "reset", true},
		{"face-attendance/command/math", "", "", false},
		{"face-attendance/command/math/reset/extra", "", "", false},
		{"face-attendance/command//reset", "", "", false},
		{"other/command/math/reset", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			class, action, ok := ParseCommandTopic("face-attendance", tt.topic)
			if class != tt.wantClass || action != tt.wantAction || ok != tt.wantOK {
				t.Errorf("ParseCommandTopic() = %q, %q, %v", class, action, ok)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	c := NewClient(config.MQTTConfig{})
	if c.Prefix() != DefaultTopicPrefix {
		t.Errorf("prefix = %s", c.Prefix())
	}
	if got := c.Topic("summary", "math"); got != "face-attendance/summary/math" {
		t.Errorf("Topic() = %s", got)
	}
	if got := c.StatusTopic(); got != "face-attendance/status" {
		t.Errorf("StatusTopic() = %s", got)
	}
}

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload interface{}
		want    string
	}{
		{"string", "online", "online"},
		{"bytes", []byte("raw"), "raw"},
		{"number", 42.5, "42.5"},
		{"struct", struct {
			Class string `json:"class"`
		}{"math"}, `{"class":"math"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodePayload(tt.payload)
			if err != nil {
				t.Fatalf("encodePayload: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("encodePayload() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDispatchCallsHandlers(t *testing.T) {
	c := NewClient(config.MQTTConfig{TopicPrefix: "fa"})
	got := make(chan string, 1)
	c.RegisterHandler(CommandHandlerFunc(func(class, action string, _ []byte) {
		got <- class + ":" + action
	}))

	c.dispatch("fa/status", nil)
	c.dispatch("fa/command/math/reset", []byte("{}"))

	select {
	case v := <-got:
		if v != "math:reset" {
			t.Errorf("handler received %s", v)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestPublishRequiresConnection(t *testing.T) {
	c := NewClient(config.MQTTConfig{})
	if err := c.Publish("x", "y"); err == nil {
		t.Error("Publish without connection should fail")
	}
}
