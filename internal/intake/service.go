package intake

import (
	"context"

	"github.com/finlit/ankabot/internal/flow"
	"github.com/finlit/ankabot/internal/observability"
)

// CompletionSink receives exactly one record per finished session. Delivery
// failures are the sink's problem; they never reach back into the flow.
type CompletionSink interface {
	Deliver(ctx context.Context, rec *flow.CompletedRecord)
}

// User identifies the sender of an inbound event.
type User struct {
	ID       string
	Username string
}

// Service routes inbound events to per-identity sessions, runs the engine
// inside the session's critical section, and hands completed records to the
// sink after the lock is released.
type Service struct {
	Engine   *flow.Engine
	Registry *flow.Registry
	Sink     CompletionSink
	Events   *observability.Logger
}

func NewService(engine *flow.Engine, registry *flow.Registry, sink CompletionSink, events *observability.Logger) *Service {
	return &Service{
		Engine:   engine,
		Registry: registry,
		Sink:     sink,
		Events:   events,
	}
}

// Handle processes one inbound event for one identity and returns the
// prompts to emit. It never returns an error: every failure mode of user
// input is a reply.
func (s *Service) Handle(ctx context.Context, u User, ev flow.Event) []flow.Prompt {
	form := s.Engine.Table()
	if ev.Kind == flow.EventStart {
		// A start always supersedes any in-flight session for the identity.
		sess := s.Registry.CreateOrReplace(u.ID, u.Username)
		sess.Lock()
		out := s.Engine.Start(sess)
		sess.Unlock()
		s.Events.LogSessionStart(u.ID, s.Engine.FormName())
		return out.Replies
	}

	sess, ok := s.Registry.Get(u.ID)
	if !ok {
		return []flow.Prompt{{Text: form.Texts().NoSession}}
	}

	sess.Lock()
	out := s.Engine.Handle(sess, ev)
	index := sess.Index()
	sess.Unlock()

	if out.Ended {
		s.Registry.Remove(u.ID)
	}

	switch {
	case out.Rejected:
		s.Events.LogReject(u.ID, s.Engine.FormName(), index)
	case out.Hint:
		s.Events.LogHint(u.ID, s.Engine.FormName(), index)
	case out.Advanced && out.Record == nil:
		s.Events.LogStepAdvance(u.ID, s.Engine.FormName(), index)
	}

	if out.Record != nil {
		// Sink I/O stays outside the per-identity critical section.
		s.Sink.Deliver(ctx, out.Record)
		fields := make(map[string]string, len(out.Record.Answers))
		for _, a := range out.Record.Answers {
			fields[a.Field] = a.Value.String()
		}
		s.Events.LogCompleted(out.Record.UserID, out.Record.Username, out.Record.Form, fields)
	}

	return out.Replies
}
