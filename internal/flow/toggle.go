package flow

// ChoiceMode tells a transport how to lay out a choice presentation.
type ChoiceMode string

const (
	ModeSingle  ChoiceMode = "single"
	ModeMulti   ChoiceMode = "multi"
	ModeConfirm ChoiceMode = "confirm"
)

// OptionView is one selectable entry in a rendered choice presentation.
type OptionView struct {
	Value    string
	Label    string
	Selected bool
}

// ChoiceView is the transport-neutral presentation of a select step. Option
// order always follows the step's option list, never the selection state.
type ChoiceView struct {
	Mode       ChoiceMode
	Options    []OptionView
	WithOther  bool
	WithDone   bool
	OtherLabel string
	DoneLabel  string
}

// Prompt is one outbound message the engine asks the transport to emit.
// InPlace marks a re-render that replaces the previously shown choice view
// instead of appending a new message.
type Prompt struct {
	Text         string
	Choice       *ChoiceView
	Contact      bool
	ContactLabel string
	InPlace      bool
}

// Toggle returns a new selection set with option added when absent and
// removed when present. The input set is never mutated.
func Toggle(selected map[string]bool, option string) map[string]bool {
	next := make(map[string]bool, len(selected)+1)
	for k, v := range selected {
		if v {
			next[k] = true
		}
	}
	if next[option] {
		delete(next, option)
	} else {
		next[option] = true
	}
	return next
}

// RenderChoices produces the option views for a select step in the step's
// fixed option order. Rendering the same selection twice yields an identical
// presentation.
func RenderChoices(step StepDescriptor, selected map[string]bool) []OptionView {
	views := make([]OptionView, 0, len(step.Options))
	for _, opt := range step.Options {
		views = append(views, OptionView{
			Value:    opt,
			Label:    opt,
			Selected: selected[opt],
		})
	}
	return views
}
