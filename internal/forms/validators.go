package forms

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/finlit/ankabot/internal/flow"
)

// SanitizePhone keeps digits and plus signs, prefixing a plus for bare
// numbers long enough to be international.
func SanitizePhone(raw string) string {
	var b strings.Builder
	for _, ch := range raw {
		if (ch >= '0' && ch <= '9') || ch == '+' {
			b.WriteRune(ch)
		}
	}
	cleaned := b.String()
	if cleaned != "" && cleaned[0] != '+' && len(cleaned) >= 9 {
		cleaned = "+" + cleaned
	}
	return cleaned
}

// validatorByName resolves the validator referenced by a form file. The
// reject string is the form's user-facing rejection message for the step.
func validatorByName(name, reject string) (flow.Validator, error) {
	switch {
	case name == "" || name == "nonempty":
		// the engine's trim + non-empty default covers it
		return nil, nil
	case name == "phone":
		if reject == "" {
			reject = "Please send a valid phone number."
		}
		return phoneValidator(reject), nil
	case strings.HasPrefix(name, "min_runes:"):
		n, err := strconv.Atoi(strings.TrimPrefix(name, "min_runes:"))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("forms: bad validator %q", name)
		}
		if reject == "" {
			reject = fmt.Sprintf("Please send at least %d characters.", n)
		}
		return minRunesValidator(n, reject), nil
	default:
		return nil, fmt.Errorf("forms: unknown validator %q", name)
	}
}

func phoneValidator(reject string) flow.Validator {
	return func(raw string) (string, error) {
		cleaned := SanitizePhone(raw)
		if len(cleaned) < 7 {
			return "", errors.New(reject)
		}
		return cleaned, nil
	}
}

func minRunesValidator(n int, reject string) flow.Validator {
	return func(raw string) (string, error) {
		if utf8.RuneCountInString(raw) < n {
			return "", errors.New(reject)
		}
		return raw, nil
	}
}
