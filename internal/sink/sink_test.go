package sink

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/finlit/ankabot/internal/flow"
	"github.com/finlit/ankabot/internal/observability"
	"github.com/finlit/ankabot/internal/store"
)

type fakeStore struct {
	saved   []*flow.CompletedRecord
	saveErr error
}

func (f *fakeStore) SaveRecord(rec *flow.CompletedRecord) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, rec)
	return int64(len(f.saved)), nil
}

func (f *fakeStore) AllRecords() ([]store.StoredRecord, error) {
	var recs []store.StoredRecord
	for i := len(f.saved) - 1; i >= 0; i-- {
		rec := f.saved[i]
		sr := store.StoredRecord{
			ID:       int64(i + 1),
			UserID:   rec.UserID,
			Username: rec.Username,
			Form:     rec.Form,
		}
		for p, a := range rec.Answers {
			sr.Answers = append(sr.Answers, store.StoredAnswer{Position: p, Field: a.Field, Value: a.Value.String()})
		}
		recs = append(recs, sr)
	}
	return recs, nil
}

type fakeMessenger struct {
	sent   []sentMessage
	failTo map[string]bool
}

type sentMessage struct {
	to   string
	text string
}

func (f *fakeMessenger) Send(chatID, text string) error {
	if f.failTo[chatID] {
		return errors.New("blocked")
	}
	f.sent = append(f.sent, sentMessage{to: chatID, text: text})
	return nil
}

func testSteps() []flow.StepDescriptor {
	return []flow.StepDescriptor{
		{Field: "full_name", Label: "Name", Kind: flow.KindFreeText},
		{Field: "format", Label: "Format", Kind: flow.KindSingleSelect, Options: []string{"online"}},
	}
}

func testRecord() *flow.CompletedRecord {
	return &flow.CompletedRecord{
		UserID:    "42",
		Username:  "jane",
		Form:      "uz",
		CreatedAt: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Answers: []flow.FieldAnswer{
			{Field: "full_name", Label: "Name", Value: flow.Value{Text: "Jane Doe"}},
			{Field: "format", Label: "Format", Value: flow.Value{Text: "online"}},
		},
	}
}

func testSink(t *testing.T, st *fakeStore, m *fakeMessenger, organizers []string) *Sink {
	t.Helper()
	render := func(rec *flow.CompletedRecord) string { return "summary for " + rec.UserID }
	events := observability.NewLogger(filepath.Join(t.TempDir(), "audit.jsonl"))
	exporter := NewExporter(st, filepath.Join(t.TempDir(), "out.xlsx"), testSteps())
	return New(st, m, render, organizers, exporter, "Thanks!", events)
}

func TestDeliver_FanOut(t *testing.T) {
	st := &fakeStore{}
	m := &fakeMessenger{}
	s := testSink(t, st, m, []string{"100", "200"})

	s.Deliver(context.Background(), testRecord())

	if len(st.saved) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(st.saved))
	}
	if len(m.sent) != 3 {
		t.Fatalf("expected receipt plus two organizer messages, got %d", len(m.sent))
	}
	receipt := m.sent[0]
	if receipt.to != "42" || !strings.HasPrefix(receipt.text, "Thanks!") {
		t.Errorf("bad receipt: %+v", receipt)
	}
	if !strings.Contains(receipt.text, "summary for 42") {
		t.Errorf("receipt missing summary: %q", receipt.text)
	}
	for _, msg := range m.sent[1:] {
		if msg.text != "summary for 42" {
			t.Errorf("organizer got %q", msg.text)
		}
	}
	if m.sent[1].to != "100" || m.sent[2].to != "200" {
		t.Errorf("organizer order wrong: %+v", m.sent[1:])
	}
}

func TestDeliver_FailedOrganizerIsNotFatal(t *testing.T) {
	st := &fakeStore{}
	m := &fakeMessenger{failTo: map[string]bool{"100": true}}
	s := testSink(t, st, m, []string{"100", "200"})

	s.Deliver(context.Background(), testRecord())

	if len(st.saved) != 1 {
		t.Fatal("save must not be affected by a blocked organizer")
	}
	var reached []string
	for _, msg := range m.sent {
		reached = append(reached, msg.to)
	}
	want := []string{"42", "200"}
	if len(reached) != 2 || reached[0] != want[0] || reached[1] != want[1] {
		t.Errorf("reached %v, want %v", reached, want)
	}
}

func TestDeliver_PersistFailureStillNotifies(t *testing.T) {
	st := &fakeStore{saveErr: errors.New("disk full")}
	m := &fakeMessenger{}
	s := testSink(t, st, m, []string{"100"})

	s.Deliver(context.Background(), testRecord())

	if len(m.sent) != 2 {
		t.Errorf("expected user and organizer still notified, got %d sends", len(m.sent))
	}
}

// Two transports share one exporter for one path; refreshes arriving from
// both at once must never interleave writes into the workbook.
func TestExporter_ConcurrentRefreshSharedPath(t *testing.T) {
	st := &fakeStore{}
	if _, err := st.SaveRecord(testRecord()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	exporter := NewExporter(st, path, testSteps())
	events := observability.NewLogger(filepath.Join(t.TempDir(), "audit.jsonl"))
	render := func(rec *flow.CompletedRecord) string { return "summary" }
	a := New(st, &fakeMessenger{}, render, nil, exporter, "Thanks!", events)
	b := New(st, &fakeMessenger{}, render, nil, exporter, "Thanks!", events)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := a.RefreshExport(); err != nil {
				t.Errorf("refresh failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := b.RefreshExport(); err != nil {
				t.Errorf("refresh failed: %v", err)
			}
		}()
	}
	wg.Wait()

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("export corrupted by concurrent refreshes: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("expected header plus one row, got %d", len(rows))
	}
}

func TestWriteExcel(t *testing.T) {
	st := &fakeStore{}
	if _, err := st.SaveRecord(testRecord()); err != nil {
		t.Fatal(err)
	}
	recs, err := st.AllRecords()
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "nested", "out.xlsx")
	if err := WriteExcel(path, testSteps(), recs); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(rows))
	}
	header := rows[0]
	if header[0] != "ID" || header[len(header)-2] != "Name" || header[len(header)-1] != "Format" {
		t.Errorf("header = %v", header)
	}
	row := rows[1]
	if row[1] != "42" || row[2] != "jane" {
		t.Errorf("metadata columns wrong: %v", row)
	}
	if row[len(row)-2] != "Jane Doe" || row[len(row)-1] != "online" {
		t.Errorf("answer columns wrong: %v", row)
	}
}
