package flow

import (
	"fmt"
	"strings"
	"time"
)

// EventKind tags an inbound event after the transport adapter has
// demultiplexed it.
type EventKind string

const (
	EventStart   EventKind = "start"
	EventText    EventKind = "text"
	EventToggle  EventKind = "toggle"
	EventConfirm EventKind = "confirm"
	EventCancel  EventKind = "cancel"
	EventRestart EventKind = "restart"
	EventOther   EventKind = "other"
)

// Event is one inbound user action. Text is set for EventText, Option for
// EventToggle.
type Event struct {
	Kind   EventKind
	Text   string
	Option string
}

// Outcome is the result of feeding one event to the engine. Hint marks a
// reply to an event whose shape did not match the current step.
type Outcome struct {
	Replies  []Prompt
	Record   *CompletedRecord
	Ended    bool
	Advanced bool
	Rejected bool
	Hint     bool
}

// Engine drives sessions through a step table. It holds no per-user state
// and performs no I/O; one engine serves every session of a form.
type Engine struct {
	table *Table
	form  string
	loc   *time.Location
}

// NewEngine binds a step table to a form name and a timestamp zone.
func NewEngine(table *Table, form string, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{table: table, form: form, loc: loc}
}

// Texts exposes the table's service strings to callers that need to reply
// outside a session, such as the no-session hint.
func (e *Engine) Texts() Texts { return e.table.texts }

// Table returns the step table the engine drives.
func (e *Engine) Table() *Table { return e.table }

// FormName returns the form name stamped onto completed records.
func (e *Engine) FormName() string { return e.form }

// Start resets the session and emits the greeting plus step 0's prompt.
// The caller must hold the session lock.
func (e *Engine) Start(s *Session) Outcome {
	s.reset()
	out := Outcome{}
	if e.table.texts.Greeting != "" {
		out.Replies = append(out.Replies, Prompt{Text: e.table.texts.Greeting})
	}
	out.Replies = append(out.Replies, e.promptFor(e.table.StepAt(0)))
	return out
}

// Handle applies one event to the session. Validation failures and
// unexpected event shapes produce replies, never errors; the engine cannot
// be crashed by user input. The caller must hold the session lock.
func (e *Engine) Handle(s *Session, ev Event) Outcome {
	switch ev.Kind {
	case EventStart:
		return e.Start(s)
	case EventCancel:
		s.reset()
		return Outcome{
			Replies: []Prompt{{Text: e.table.texts.Cancelled}},
			Ended:   true,
		}
	}

	if s.index >= e.table.Len() {
		return e.handleReview(s, ev)
	}

	step := e.table.StepAt(s.index)
	switch step.Kind {
	case KindFreeText:
		return e.handleFreeText(s, step, ev)
	case KindSingleSelect:
		return e.handleSingle(s, step, ev)
	default:
		return e.handleMulti(s, step, ev)
	}
}

func (e *Engine) handleFreeText(s *Session, step StepDescriptor, ev Event) Outcome {
	if ev.Kind != EventText {
		return hint(e.table.texts.NotText)
	}
	text, rejected := e.acceptText(step, ev.Text)
	if rejected != "" {
		return Outcome{Replies: []Prompt{{Text: rejected}}, Rejected: true}
	}
	s.answers[step.Field] = Value{Text: text}
	return e.advance(s)
}

func (e *Engine) handleSingle(s *Session, step StepDescriptor, ev Event) Outcome {
	if ev.Kind != EventToggle {
		return hint(e.table.texts.NotChoice)
	}
	if !validOption(step, ev.Option) {
		return hint(e.table.texts.NotChoice)
	}
	// Picking an option clears any other and advances immediately; there is
	// no separate confirm action for single-select steps.
	s.answers[step.Field] = Value{Text: ev.Option}
	return e.advance(s)
}

func (e *Engine) handleMulti(s *Session, step StepDescriptor, ev Event) Outcome {
	if s.awaitingOther {
		if ev.Kind != EventText {
			return hint(e.table.texts.NotText)
		}
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return Outcome{Replies: []Prompt{{Text: e.table.texts.EmptyText}}, Rejected: true}
		}
		s.otherText = text
		return e.finalizeMulti(s, step)
	}

	switch ev.Kind {
	case EventToggle:
		if !validOption(step, ev.Option) {
			return hint(e.table.texts.NotChoice)
		}
		s.selected = Toggle(s.selected, ev.Option)
		return Outcome{Replies: []Prompt{{
			Choice:  e.choiceFor(step, s.selected),
			InPlace: true,
		}}}
	case EventOther:
		if !step.AllowOther {
			return hint(e.table.texts.NotChoice)
		}
		s.awaitingOther = true
		return Outcome{Replies: []Prompt{{Text: step.OtherPrompt}}}
	case EventConfirm:
		if len(sortedSelection(s.selected)) == 0 && s.otherText == "" && step.MinSelected > 0 {
			return Outcome{Replies: []Prompt{{Text: e.table.texts.SelectMin}}, Rejected: true}
		}
		return e.finalizeMulti(s, step)
	default:
		return hint(e.table.texts.NotChoice)
	}
}

func (e *Engine) finalizeMulti(s *Session, step StepDescriptor) Outcome {
	s.answers[step.Field] = Value{
		Options: sortedSelection(s.selected),
		Text:    s.otherText,
	}
	return e.advance(s)
}

// advance moves past the current step, clearing its scratch state, and
// emits the next prompt, the review screen, or the completed record.
func (e *Engine) advance(s *Session) Outcome {
	s.clearScratch()
	s.index++
	if s.index < e.table.Len() {
		return Outcome{
			Replies:  []Prompt{e.promptFor(e.table.StepAt(s.index))},
			Advanced: true,
		}
	}
	if e.table.confirm {
		return Outcome{
			Replies:  []Prompt{e.reviewPrompt(s)},
			Advanced: true,
		}
	}
	return e.complete(s)
}

func (e *Engine) handleReview(s *Session, ev Event) Outcome {
	switch ev.Kind {
	case EventConfirm:
		return e.complete(s)
	case EventRestart:
		s.reset()
		out := Outcome{}
		if e.table.texts.RestartNotice != "" {
			out.Replies = append(out.Replies, Prompt{Text: e.table.texts.RestartNotice})
		}
		out.Replies = append(out.Replies, e.promptFor(e.table.StepAt(0)))
		return out
	default:
		return hint(e.table.texts.NotChoice)
	}
}

// complete snapshots the answers into an immutable record. The caller hands
// the record to the completion sink after releasing the session lock.
func (e *Engine) complete(s *Session) Outcome {
	rec := &CompletedRecord{
		UserID:    s.userID,
		Username:  s.username,
		Form:      e.form,
		CreatedAt: time.Now().In(e.loc),
		Answers:   make([]FieldAnswer, 0, e.table.Len()),
	}
	for _, step := range e.table.steps {
		rec.Answers = append(rec.Answers, FieldAnswer{
			Field: step.Field,
			Label: step.Label,
			Value: s.answers[step.Field],
		})
	}
	s.reset()
	return Outcome{Record: rec, Ended: true, Advanced: true}
}

func (e *Engine) promptFor(step StepDescriptor) Prompt {
	p := Prompt{Text: step.Prompt}
	switch step.Kind {
	case KindSingleSelect:
		p.Choice = e.choiceFor(step, nil)
	case KindMultiSelect:
		p.Choice = e.choiceFor(step, nil)
	case KindFreeText:
		if step.Contact {
			p.Contact = true
			p.ContactLabel = e.table.texts.ShareContact
		}
	}
	return p
}

func (e *Engine) choiceFor(step StepDescriptor, selected map[string]bool) *ChoiceView {
	c := &ChoiceView{Options: RenderChoices(step, selected)}
	if step.Kind == KindSingleSelect {
		c.Mode = ModeSingle
		return c
	}
	c.Mode = ModeMulti
	c.WithDone = true
	c.DoneLabel = e.table.texts.DoneButton
	if step.AllowOther {
		c.WithOther = true
		c.OtherLabel = e.table.texts.OtherButton
	}
	return c
}

// reviewPrompt lays out every answer for the pre-submit confirmation.
func (e *Engine) reviewPrompt(s *Session) Prompt {
	var b strings.Builder
	for _, step := range e.table.steps {
		label := step.Label
		if label == "" {
			label = step.Field
		}
		fmt.Fprintf(&b, "%s: %s\n", label, s.answers[step.Field].String())
	}
	b.WriteString("\n")
	b.WriteString(e.table.texts.ConfirmPrompt)
	return Prompt{
		Text: b.String(),
		Choice: &ChoiceView{
			Mode: ModeConfirm,
			Options: []OptionView{
				{Value: "yes", Label: e.table.texts.ConfirmYes},
				{Value: "restart", Label: e.table.texts.ConfirmRestart},
			},
		},
	}
}

// acceptText trims and validates a free-text answer, returning either the
// normalized value or a user-facing rejection message.
func (e *Engine) acceptText(step StepDescriptor, raw string) (string, string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", e.table.texts.EmptyText
	}
	if step.Validate != nil {
		v, err := step.Validate(text)
		if err != nil {
			return "", err.Error()
		}
		return v, ""
	}
	return text, ""
}

func validOption(step StepDescriptor, option string) bool {
	for _, opt := range step.Options {
		if opt == option {
			return true
		}
	}
	return false
}

func hint(text string) Outcome {
	return Outcome{Replies: []Prompt{{Text: text}}, Hint: true}
}
