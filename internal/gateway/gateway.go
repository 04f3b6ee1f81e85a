package gateway

import (
	"strings"

	"github.com/finlit/ankabot/internal/flow"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the event listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Callback token scheme shared by every gateway: opt:: toggles a multi-select
// option, pick:: chooses a single-select option, done::ok confirms a
// multi-select, alt::text requests the free-text escape, confirm::yes and
// confirm::restart act on the review screen.
func parseCallback(data string) (flow.Event, bool) {
	switch {
	case strings.HasPrefix(data, "opt::"):
		return flow.Event{Kind: flow.EventToggle, Option: strings.TrimPrefix(data, "opt::")}, true
	case strings.HasPrefix(data, "pick::"):
		return flow.Event{Kind: flow.EventToggle, Option: strings.TrimPrefix(data, "pick::")}, true
	case data == "done::ok" || data == "confirm::yes":
		return flow.Event{Kind: flow.EventConfirm}, true
	case data == "alt::text":
		return flow.Event{Kind: flow.EventOther}, true
	case data == "confirm::restart":
		return flow.Event{Kind: flow.EventRestart}, true
	}
	return flow.Event{}, false
}
