package forms

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/finlit/ankabot/internal/flow"
)

//go:embed defs/*.yaml
var builtinFS embed.FS

// Form is one loaded flow variant: a named, validated step table. New
// question flows are authored as form files, not as code.
type Form struct {
	Name  string
	Table *flow.Table
}

type formSpec struct {
	Name    string     `yaml:"name"`
	Confirm bool       `yaml:"confirm"`
	Texts   textsSpec  `yaml:"texts"`
	Steps   []stepSpec `yaml:"steps"`
}

type stepSpec struct {
	Field       string   `yaml:"field"`
	Label       string   `yaml:"label"`
	Kind        string   `yaml:"kind"`
	Prompt      string   `yaml:"prompt"`
	Options     []string `yaml:"options"`
	Other       bool     `yaml:"other"`
	OtherPrompt string   `yaml:"other_prompt"`
	Min         int      `yaml:"min"`
	Contact     bool     `yaml:"contact"`
	Validate    string   `yaml:"validate"`
	Reject      string   `yaml:"reject"`
}

type textsSpec struct {
	Greeting       string `yaml:"greeting"`
	ConfirmPrompt  string `yaml:"confirm_prompt"`
	ConfirmYes     string `yaml:"confirm_yes"`
	ConfirmRestart string `yaml:"confirm_restart"`
	RestartNotice  string `yaml:"restart_notice"`
	DoneButton     string `yaml:"done_button"`
	OtherButton    string `yaml:"other_button"`
	ShareContact   string `yaml:"share_contact"`
	Completed      string `yaml:"completed"`
	Cancelled      string `yaml:"cancelled"`
	NoSession      string `yaml:"no_session"`
	NotText        string `yaml:"not_text"`
	NotChoice      string `yaml:"not_choice"`
	SelectMin      string `yaml:"select_min"`
	EmptyText      string `yaml:"empty_text"`
	SummaryTitle   string `yaml:"summary_title"`
	UserLabel      string `yaml:"user_label"`
	DateLabel      string `yaml:"date_label"`
}

// Load parses and validates one form document.
func Load(data []byte) (*Form, error) {
	var spec formSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("forms: %w", err)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("forms: form has no name")
	}

	steps := make([]flow.StepDescriptor, 0, len(spec.Steps))
	for _, ss := range spec.Steps {
		kind, err := kindOf(ss.Kind)
		if err != nil {
			return nil, fmt.Errorf("forms: field %q: %w", ss.Field, err)
		}
		validate, err := validatorByName(ss.Validate, ss.Reject)
		if err != nil {
			return nil, err
		}
		steps = append(steps, flow.StepDescriptor{
			Field:       ss.Field,
			Label:       ss.Label,
			Kind:        kind,
			Prompt:      ss.Prompt,
			Options:     ss.Options,
			AllowOther:  ss.Other,
			OtherPrompt: ss.OtherPrompt,
			MinSelected: ss.Min,
			Contact:     ss.Contact,
			Validate:    validate,
		})
	}

	table, err := flow.NewTable(steps, mergeTexts(spec.Texts), spec.Confirm)
	if err != nil {
		return nil, err
	}
	return &Form{Name: spec.Name, Table: table}, nil
}

// LoadFile loads a form from an external form file.
func LoadFile(path string) (*Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Builtin loads one of the embedded forms by short name ("uz", "ru").
func Builtin(name string) (*Form, error) {
	data, err := builtinFS.ReadFile("defs/registration_" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("forms: no builtin form %q (have: %s)", name, strings.Join(Builtins(), ", "))
	}
	return Load(data)
}

// Builtins lists the embedded form short names.
func Builtins() []string {
	entries, err := builtinFS.ReadDir("defs")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		n = strings.TrimPrefix(n, "registration_")
		n = strings.TrimSuffix(n, ".yaml")
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func kindOf(raw string) (flow.Kind, error) {
	switch raw {
	case "text":
		return flow.KindFreeText, nil
	case "single":
		return flow.KindSingleSelect, nil
	case "multi":
		return flow.KindMultiSelect, nil
	default:
		return "", fmt.Errorf("unknown kind %q", raw)
	}
}

// mergeTexts overlays the form's strings on the defaults, so a form only
// has to translate what it uses.
func mergeTexts(ts textsSpec) flow.Texts {
	out := flow.DefaultTexts()
	override := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	override(&out.Greeting, ts.Greeting)
	override(&out.ConfirmPrompt, ts.ConfirmPrompt)
	override(&out.ConfirmYes, ts.ConfirmYes)
	override(&out.ConfirmRestart, ts.ConfirmRestart)
	override(&out.RestartNotice, ts.RestartNotice)
	override(&out.DoneButton, ts.DoneButton)
	override(&out.OtherButton, ts.OtherButton)
	override(&out.ShareContact, ts.ShareContact)
	override(&out.Completed, ts.Completed)
	override(&out.Cancelled, ts.Cancelled)
	override(&out.NoSession, ts.NoSession)
	override(&out.NotText, ts.NotText)
	override(&out.NotChoice, ts.NotChoice)
	override(&out.SelectMin, ts.SelectMin)
	override(&out.EmptyText, ts.EmptyText)
	override(&out.SummaryTitle, ts.SummaryTitle)
	override(&out.UserLabel, ts.UserLabel)
	override(&out.DateLabel, ts.DateLabel)
	return out
}
