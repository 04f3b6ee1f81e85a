package gateway

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/finlit/ankabot/internal/flow"
)

var strictPolicy = bluemonday.StrictPolicy()

// Summary renders a completed record as Telegram-flavored HTML. Every
// user-supplied value is stripped of markup before it lands inside a
// parse-mode HTML message.
func Summary(rec *flow.CompletedRecord, texts flow.Texts, tzName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s\n", bold(texts.SummaryTitle))
	fmt.Fprintf(&b, "%s: %s\n\n", bold(texts.UserLabel), sanitize(userLink(rec)))
	for _, a := range rec.Answers {
		fmt.Fprintf(&b, "%s: %s\n", bold(answerLabel(a)), sanitize(a.Value.String()))
	}
	fmt.Fprintf(&b, "\n%s: %s (%s)",
		bold(texts.DateLabel), rec.CreatedAt.Format("2006-01-02 15:04:05"), tzName)
	return b.String()
}

// PlainSummary is the same layout without HTML, for transports that render
// messages as plain text.
func PlainSummary(rec *flow.CompletedRecord, texts flow.Texts, tzName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s\n", texts.SummaryTitle)
	fmt.Fprintf(&b, "%s: %s\n\n", texts.UserLabel, userLink(rec))
	for _, a := range rec.Answers {
		fmt.Fprintf(&b, "%s: %s\n", answerLabel(a), a.Value.String())
	}
	fmt.Fprintf(&b, "\n%s: %s (%s)",
		texts.DateLabel, rec.CreatedAt.Format("2006-01-02 15:04:05"), tzName)
	return b.String()
}

func userLink(rec *flow.CompletedRecord) string {
	if rec.Username != "" {
		return "@" + rec.Username
	}
	return rec.UserID
}

func answerLabel(a flow.FieldAnswer) string {
	if a.Label != "" {
		return a.Label
	}
	return a.Field
}

func bold(s string) string {
	return "<b>" + s + "</b>"
}

func sanitize(s string) string {
	return strictPolicy.Sanitize(s)
}
