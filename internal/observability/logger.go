package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeSessionStart EventType = "session_start"
	EventTypeStepAdvance  EventType = "step_advance"
	EventTypeReject       EventType = "validation_reject"
	EventTypeHint         EventType = "hint"
	EventTypeCompleted    EventType = "completed"
	EventTypeSinkError    EventType = "sink_error"
	EventTypeBroadcast    EventType = "broadcast"
	EventTypeHeartbeat    EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Form      string    `json:"form,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger emits structured JSON events to stdout and keeps an audit trail of
// completed registrations in a size-rotated file.
type Logger struct {
	auditPath string
	maxSize   int64
}

func NewLogger(auditPath string) *Logger {
	if auditPath == "" {
		auditPath = filepath.Join("logs", "registrations.jsonl")
	}
	return &Logger{
		auditPath: auditPath,
		maxSize:   10 * 1024 * 1024, // 10MB
	}
}

// Log emits a structured JSON event to stdout.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeCompleted {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.auditPath), 0755); err != nil {
		log.Printf("failed to create audit directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.auditPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotate()
	}

	f, err := os.OpenFile(l.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open audit file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to audit file: %v", err)
	}
}

func (l *Logger) rotate() {
	// Simple rotation: keep one .old file
	oldPath := l.auditPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.auditPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogSessionStart(userID, form string) {
	l.Log(Event{
		Type:   EventTypeSessionStart,
		UserID: userID,
		Form:   form,
	})
}

func (l *Logger) LogStepAdvance(userID, form string, index int) {
	l.Log(Event{
		Type:   EventTypeStepAdvance,
		UserID: userID,
		Form:   form,
		Data:   map[string]any{"index": index},
	})
}

func (l *Logger) LogReject(userID, form string, index int) {
	l.Log(Event{
		Type:   EventTypeReject,
		UserID: userID,
		Form:   form,
		Data:   map[string]any{"index": index},
	})
}

func (l *Logger) LogHint(userID, form string, index int) {
	l.Log(Event{
		Type:   EventTypeHint,
		UserID: userID,
		Form:   form,
		Data:   map[string]any{"index": index},
	})
}

func (l *Logger) LogCompleted(userID, username, form string, fields map[string]string) {
	l.Log(Event{
		Type:   EventTypeCompleted,
		UserID: userID,
		Form:   form,
		Data: map[string]any{
			"username": username,
			"fields":   fields,
		},
	})
}

func (l *Logger) LogSinkError(userID, stage string, err error) {
	l.Log(Event{
		Type:   EventTypeSinkError,
		UserID: userID,
		Data: map[string]string{
			"stage": stage,
			"error": err.Error(),
		},
	})
}

func (l *Logger) LogBroadcast(sent, failed int) {
	l.Log(Event{
		Type: EventTypeBroadcast,
		Data: map[string]int{
			"sent":   sent,
			"failed": failed,
		},
	})
}

func (l *Logger) LogHeartbeat(activeSessions int) {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]any{
			"status":          "alive",
			"active_sessions": activeSessions,
			"uptime":          Uptime().String(),
		},
	})
}
