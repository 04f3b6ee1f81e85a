package intake

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/finlit/ankabot/internal/flow"
	"github.com/finlit/ankabot/internal/observability"
)

type captureSink struct {
	records []*flow.CompletedRecord
}

func (c *captureSink) Deliver(_ context.Context, rec *flow.CompletedRecord) {
	c.records = append(c.records, rec)
}

func testService(t *testing.T) (*Service, *captureSink) {
	t.Helper()
	steps := []flow.StepDescriptor{
		{Field: "name", Label: "Name", Kind: flow.KindFreeText, Prompt: "Your name?"},
		{Field: "format", Label: "Format", Kind: flow.KindSingleSelect, Prompt: "Format?", Options: []string{"online", "offline"}},
	}
	table, err := flow.NewTable(steps, flow.DefaultTexts(), false)
	if err != nil {
		t.Fatal(err)
	}
	engine := flow.NewEngine(table, "test-form", time.UTC)
	snk := &captureSink{}
	events := observability.NewLogger(filepath.Join(t.TempDir(), "audit.jsonl"))
	return NewService(engine, flow.NewRegistry(), snk, events), snk
}

func TestService_FullSession(t *testing.T) {
	svc, snk := testService(t)
	ctx := context.Background()
	jane := User{ID: "42", Username: "jane"}

	replies := svc.Handle(ctx, jane, flow.Event{Kind: flow.EventStart})
	if len(replies) == 0 {
		t.Fatal("expected a greeting and the first prompt")
	}
	if svc.Registry.Len() != 1 {
		t.Fatal("expected a live session after start")
	}

	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventText, Text: "Jane Doe"})
	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventToggle, Option: "online"})

	if len(snk.records) != 1 {
		t.Fatalf("expected one delivered record, got %d", len(snk.records))
	}
	rec := snk.records[0]
	if rec.UserID != "42" || rec.Form != "test-form" {
		t.Errorf("bad record: %+v", rec)
	}
	if svc.Registry.Len() != 0 {
		t.Error("session must be removed after completion")
	}
}

func TestService_NoSessionHint(t *testing.T) {
	svc, snk := testService(t)
	replies := svc.Handle(context.Background(), User{ID: "7"}, flow.Event{Kind: flow.EventText, Text: "hello"})
	if len(replies) != 1 || replies[0].Text != flow.DefaultTexts().NoSession {
		t.Errorf("expected the no-session hint, got %+v", replies)
	}
	if len(snk.records) != 0 {
		t.Error("nothing must reach the sink")
	}
}

func TestService_CancelRemovesSession(t *testing.T) {
	svc, snk := testService(t)
	ctx := context.Background()
	jane := User{ID: "42", Username: "jane"}

	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventStart})
	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventText, Text: "Jane"})
	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventCancel})

	if svc.Registry.Len() != 0 {
		t.Error("cancel must remove the session")
	}
	if len(snk.records) != 0 {
		t.Error("a cancelled session must not produce a record")
	}

	// The identity can start fresh afterwards.
	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventStart})
	if svc.Registry.Len() != 1 {
		t.Error("expected a fresh session after cancel")
	}
}

func TestService_RestartMidFlight(t *testing.T) {
	svc, snk := testService(t)
	ctx := context.Background()
	jane := User{ID: "42", Username: "jane"}

	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventStart})
	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventText, Text: "Wrong Name"})

	// A second /start supersedes the in-flight session.
	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventStart})
	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventText, Text: "Jane Doe"})
	svc.Handle(ctx, jane, flow.Event{Kind: flow.EventToggle, Option: "offline"})

	if len(snk.records) != 1 {
		t.Fatalf("expected one record, got %d", len(snk.records))
	}
	if v, _ := snk.records[0].Get("name"); v.Text != "Jane Doe" {
		t.Errorf("expected the superseding session's answer, got %q", v.Text)
	}
}
