package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditTrailKeepsCompletedOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := NewLogger(path)

	l.LogSessionStart("42", "uz")
	l.LogHint("42", "uz", 1)
	l.LogHeartbeat(3)
	l.LogCompleted("42", "jane", "uz", map[string]string{"full_name": "Jane Doe"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the completed event in the audit file, got %d lines", len(lines))
	}

	var evt Event
	if err := json.Unmarshal([]byte(lines[0]), &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Type != EventTypeCompleted || evt.UserID != "42" || evt.Form != "uz" {
		t.Errorf("bad audit event: %+v", evt)
	}
	if evt.Timestamp.IsZero() {
		t.Error("expected a timestamp stamped on the event")
	}
}

func TestAuditRotationKeepsOneOld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := NewLogger(path)
	l.maxSize = 1

	l.LogCompleted("1", "a", "uz", nil)
	l.LogCompleted("2", "b", "uz", nil)

	old, err := os.ReadFile(path + ".old")
	if err != nil {
		t.Fatalf("expected a rotated file: %v", err)
	}
	if !strings.Contains(string(old), `"user_id":"1"`) {
		t.Errorf("rotated file has wrong contents: %s", old)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(current), `"user_id":"2"`) {
		t.Errorf("current file has wrong contents: %s", current)
	}
}

func TestUptime(t *testing.T) {
	if Uptime() < 0 {
		t.Error("uptime went backwards")
	}
}
