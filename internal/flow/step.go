package flow

import "fmt"

// Kind describes how a step collects its answer.
type Kind string

const (
	KindFreeText     Kind = "text"
	KindSingleSelect Kind = "single"
	KindMultiSelect  Kind = "multi"
)

// Validator normalizes a free-text answer. The returned error carries a
// user-facing rejection message, not an internal failure.
type Validator func(raw string) (string, error)

// StepDescriptor is one question in a form. Descriptors are immutable after
// the table is built.
type StepDescriptor struct {
	Field       string
	Label       string
	Kind        Kind
	Prompt      string
	Options     []string
	AllowOther  bool
	OtherPrompt string
	MinSelected int
	Contact     bool
	Validate    Validator
}

// Texts holds the engine-emitted service strings for one form. Prompts and
// option captions live on the steps; these are everything else the user sees.
type Texts struct {
	Greeting       string
	ConfirmPrompt  string
	ConfirmYes     string
	ConfirmRestart string
	RestartNotice  string
	DoneButton     string
	OtherButton    string
	ShareContact   string
	Completed      string
	Cancelled      string
	NoSession      string
	NotText        string
	NotChoice      string
	SelectMin      string
	EmptyText      string
	SummaryTitle   string
	UserLabel      string
	DateLabel      string
}

// DefaultTexts returns English service strings; form files override them.
func DefaultTexts() Texts {
	return Texts{
		Greeting:       "Welcome! A few questions and you are in.",
		ConfirmPrompt:  "Is everything correct?",
		ConfirmYes:     "✅ Confirm",
		ConfirmRestart: "↩️ Start over",
		RestartNotice:  "Starting over.",
		DoneButton:     "✅ Done",
		OtherButton:    "✍️ Other (type it in)",
		ShareContact:   "📞 Share my number",
		Completed:      "✅ Registration complete!",
		Cancelled:      "Cancelled. Send /start to begin again.",
		NoSession:      "Send /start to begin.",
		NotText:        "Please answer with a text message.",
		NotChoice:      "Please use the buttons above.",
		SelectMin:      "Select at least one option first.",
		EmptyText:      "Please send a non-empty answer.",
		SummaryTitle:   "New registration!",
		UserLabel:      "User",
		DateLabel:      "Date/time",
	}
}

// Table is the ordered, immutable sequence of steps for one form variant.
type Table struct {
	steps   []StepDescriptor
	texts   Texts
	confirm bool
}

// NewTable validates the descriptors and freezes them into a table. When
// confirm is set the flow ends with a review screen before submission.
func NewTable(steps []StepDescriptor, texts Texts, confirm bool) (*Table, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("flow: table needs at least one step")
	}
	seen := make(map[string]bool, len(steps))
	for i, st := range steps {
		if st.Field == "" {
			return nil, fmt.Errorf("flow: step %d has no field name", i)
		}
		if seen[st.Field] {
			return nil, fmt.Errorf("flow: duplicate field %q", st.Field)
		}
		seen[st.Field] = true
		switch st.Kind {
		case KindFreeText:
			if len(st.Options) != 0 {
				return nil, fmt.Errorf("flow: field %q is free-text but has options", st.Field)
			}
		case KindSingleSelect, KindMultiSelect:
			if len(st.Options) == 0 {
				return nil, fmt.Errorf("flow: select field %q has no options", st.Field)
			}
			if st.MinSelected > len(st.Options) {
				return nil, fmt.Errorf("flow: field %q requires %d selections but offers %d options", st.Field, st.MinSelected, len(st.Options))
			}
		default:
			return nil, fmt.Errorf("flow: field %q has unknown kind %q", st.Field, st.Kind)
		}
	}
	cp := make([]StepDescriptor, len(steps))
	copy(cp, steps)
	return &Table{steps: cp, texts: texts, confirm: confirm}, nil
}

// StepAt returns the descriptor at index i.
func (t *Table) StepAt(i int) StepDescriptor { return t.steps[i] }

// Len returns the number of steps.
func (t *Table) Len() int { return len(t.steps) }

// Steps returns a copy of every descriptor in order.
func (t *Table) Steps() []StepDescriptor {
	cp := make([]StepDescriptor, len(t.steps))
	copy(cp, t.steps)
	return cp
}

// HasConfirm reports whether the flow ends with a review screen.
func (t *Table) HasConfirm() bool { return t.confirm }

// Texts returns the form's service strings.
func (t *Table) Texts() Texts { return t.texts }
