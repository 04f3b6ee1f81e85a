package flow

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Value is one collected answer. Free-text and single-select answers live in
// Text; multi-select answers live in Options with Text holding an optional
// supplementary free-text addition.
type Value struct {
	Text    string
	Options []string
}

// String flattens the value the way it is stored and shown: options first
// (already sorted at finalize time), supplementary text appended last.
func (v Value) String() string {
	parts := make([]string, 0, len(v.Options)+1)
	parts = append(parts, v.Options...)
	if v.Text != "" {
		parts = append(parts, v.Text)
	}
	return strings.Join(parts, ", ")
}

// Session is one user's pass through a form. All fields are guarded by the
// session lock; the registry hands out at most one live session per identity.
type Session struct {
	mu sync.Mutex

	userID   string
	username string

	index         int
	answers       map[string]Value
	selected      map[string]bool
	awaitingOther bool
	otherText     string
}

func newSession(userID, username string) *Session {
	return &Session{
		userID:   userID,
		username: username,
		answers:  make(map[string]Value),
	}
}

// Lock serializes event processing for this session's identity.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-identity serialization point.
func (s *Session) Unlock() { s.mu.Unlock() }

// Index returns the current 0-based step index; index == table length means
// the session is at the confirmation review.
func (s *Session) Index() int { return s.index }

// UserID returns the transport identity the session belongs to.
func (s *Session) UserID() string { return s.userID }

// Answer returns the stored value for a passed step's field.
func (s *Session) Answer(field string) (Value, bool) {
	v, ok := s.answers[field]
	return v, ok
}

// reset clears all progress so the session is back at step 0 with an empty
// answer store.
func (s *Session) reset() {
	s.index = 0
	s.answers = make(map[string]Value)
	s.clearScratch()
}

// clearScratch drops the per-step ephemeral state when leaving a step.
func (s *Session) clearScratch() {
	s.selected = nil
	s.awaitingOther = false
	s.otherText = ""
}

// FieldAnswer pairs a field with its finalized value, in table order.
type FieldAnswer struct {
	Field string
	Label string
	Value Value
}

// CompletedRecord is the immutable snapshot produced when a session finishes.
type CompletedRecord struct {
	UserID    string
	Username  string
	Form      string
	CreatedAt time.Time
	Answers   []FieldAnswer
}

// Get returns the value for one field of the record.
func (r *CompletedRecord) Get(field string) (Value, bool) {
	for _, a := range r.Answers {
		if a.Field == field {
			return a.Value, true
		}
	}
	return Value{}, false
}

// sortedSelection flattens a selection set into a deterministic list.
func sortedSelection(selected map[string]bool) []string {
	out := make([]string, 0, len(selected))
	for opt, on := range selected {
		if on {
			out = append(out, opt)
		}
	}
	sort.Strings(out)
	return out
}
