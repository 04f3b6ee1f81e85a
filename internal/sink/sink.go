package sink

import (
	"context"

	"github.com/finlit/ankabot/internal/flow"
	"github.com/finlit/ankabot/internal/observability"
	"github.com/finlit/ankabot/internal/store"
)

// Messenger sends outbound messages to a transport identity.
type Messenger interface {
	Send(chatID string, text string) error
}

// RecordStore is the persistence surface the sink fans out to.
type RecordStore interface {
	SaveRecord(rec *flow.CompletedRecord) (int64, error)
	AllRecords() ([]store.StoredRecord, error)
}

// Sink fans a completed record out to persistence, the Excel export, the
// submitting user, and every configured organizer. Each delivery leg fails
// independently; a lost organizer DM never rolls back a saved registration.
// Sinks for different transports share one Exporter, which serializes
// writes to the export path.
type Sink struct {
	Store      RecordStore
	Messenger  Messenger
	Render     func(*flow.CompletedRecord) string
	Organizers []string
	Export     *Exporter
	Receipt    string
	Events     *observability.Logger
}

func New(st RecordStore, m Messenger, render func(*flow.CompletedRecord) string, organizers []string, export *Exporter, receipt string, events *observability.Logger) *Sink {
	return &Sink{
		Store:      st,
		Messenger:  m,
		Render:     render,
		Organizers: organizers,
		Export:     export,
		Receipt:    receipt,
		Events:     events,
	}
}

// Deliver handles one completed record. Called once per finished session,
// outside the session's critical section.
func (s *Sink) Deliver(ctx context.Context, rec *flow.CompletedRecord) {
	if _, err := s.Store.SaveRecord(rec); err != nil {
		s.Events.LogSinkError(rec.UserID, "persist", err)
	}

	if err := s.RefreshExport(); err != nil {
		s.Events.LogSinkError(rec.UserID, "export", err)
	}

	summary := s.Render(rec)

	if err := s.Messenger.Send(rec.UserID, s.Receipt+"\n\n"+summary); err != nil {
		s.Events.LogSinkError(rec.UserID, "receipt", err)
	}

	for _, org := range s.Organizers {
		if err := s.Messenger.Send(org, summary); err != nil {
			s.Events.LogSinkError(org, "notify", err)
		}
	}
}

// RefreshExport rewrites the Excel export through the shared exporter.
func (s *Sink) RefreshExport() error {
	return s.Export.Refresh()
}
