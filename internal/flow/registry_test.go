package flow

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestRegistry_ReplaceDiscardsProgress(t *testing.T) {
	r := NewRegistry()
	e := NewEngine(testTable(t, false), "test-form", time.UTC)

	first := r.CreateOrReplace("42", "jane")
	e.Start(first)
	e.Handle(first, Event{Kind: EventText, Text: "Jane"})
	if _, ok := first.Answer("name"); !ok {
		t.Fatal("setup: first session should hold an answer")
	}

	second := r.CreateOrReplace("42", "jane")
	if second == first {
		t.Fatal("replacement must be a fresh session")
	}
	if _, ok := second.Answer("name"); ok {
		t.Error("replacement must not inherit answers")
	}

	got, ok := r.Get("42")
	if !ok || got != second {
		t.Error("lookups must see only the replacement")
	}
	if r.Len() != 1 {
		t.Errorf("expected one live session, got %d", r.Len())
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	r.CreateOrReplace("42", "jane")
	r.Remove("42")
	if _, ok := r.Get("42"); ok {
		t.Error("expected session gone after remove")
	}

	// Removing an absent identity is a no-op.
	r.Remove("42")
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_ConcurrentIdentities(t *testing.T) {
	r := NewRegistry()
	e := NewEngine(testTable(t, false), "test-form", time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := strconv.Itoa(i)
			s := r.CreateOrReplace(id, "")
			s.Lock()
			e.Start(s)
			e.Handle(s, Event{Kind: EventText, Text: "user " + id})
			s.Unlock()
		}(i)
	}
	wg.Wait()

	if r.Len() != 32 {
		t.Fatalf("expected 32 live sessions, got %d", r.Len())
	}
	for i := 0; i < 32; i++ {
		s, ok := r.Get(strconv.Itoa(i))
		if !ok {
			t.Fatalf("missing session %d", i)
		}
		if v, ok := s.Answer("name"); !ok || v.Text != "user "+strconv.Itoa(i) {
			t.Errorf("session %d: unexpected answer %+v", i, v)
		}
	}
}
