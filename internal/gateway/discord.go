package gateway

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/finlit/ankabot/internal/flow"
	"github.com/finlit/ankabot/internal/intake"
)

// DiscordGateway drives the same intake flow over Discord DMs, with message
// components standing in for Telegram's inline keyboards. It shares the
// callback token scheme, so the engine never knows which transport it is on.
type DiscordGateway struct {
	Session *discordgo.Session
	Service *intake.Service

	mu       sync.Mutex
	channels map[string]string // user id -> DM channel id
}

func NewDiscordGateway(token string, svc *intake.Service) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	dg := &DiscordGateway{
		Session:  session,
		Service:  svc,
		channels: make(map[string]string),
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	// Dispatch handlers synchronously: the session mutex serializes one
	// user's events but is not FIFO, so arrival order needs ordered dispatch.
	session.SyncEvents = true
	session.AddHandler(dg.onMessage)
	session.AddHandler(dg.onInteraction)
	return dg, nil
}

func (dg *DiscordGateway) Start() error {
	if err := dg.Session.Open(); err != nil {
		return err
	}
	log.Printf("Discord gateway connected as %s", dg.Session.State.User.Username)
	return nil
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}

func (dg *DiscordGateway) Send(userID string, text string) error {
	ch, err := dg.dmChannel(userID)
	if err != nil {
		return err
	}
	_, err = dg.Session.ChannelMessageSend(ch, text)
	return err
}

func (dg *DiscordGateway) dmChannel(userID string) (string, error) {
	dg.mu.Lock()
	ch, ok := dg.channels[userID]
	dg.mu.Unlock()
	if ok {
		return ch, nil
	}
	c, err := dg.Session.UserChannelCreate(userID)
	if err != nil {
		return "", err
	}
	dg.mu.Lock()
	dg.channels[userID] = c.ID
	dg.mu.Unlock()
	return c.ID, nil
}

func (dg *DiscordGateway) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	dg.mu.Lock()
	dg.channels[m.Author.ID] = m.ChannelID
	dg.mu.Unlock()

	user := intake.User{ID: m.Author.ID, Username: m.Author.Username}
	var ev flow.Event
	switch strings.TrimSpace(m.Content) {
	case "/start", "!start":
		ev = flow.Event{Kind: flow.EventStart}
	case "/cancel", "!cancel":
		ev = flow.Event{Kind: flow.EventCancel}
	default:
		ev = flow.Event{Kind: flow.EventText, Text: m.Content}
	}
	dg.emit(m.ChannelID, dg.Service.Handle(context.Background(), user, ev))
}

func (dg *DiscordGateway) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	ev, ok := parseCallback(i.MessageComponentData().CustomID)
	if !ok {
		return
	}

	u := i.User
	if u == nil && i.Member != nil {
		u = i.Member.User
	}
	if u == nil {
		return
	}

	replies := dg.Service.Handle(context.Background(), intake.User{ID: u.ID, Username: u.Username}, ev)

	// An in-place re-render answers the interaction by updating the button
	// message; anything else gets a deferred ack plus new messages.
	var rest []flow.Prompt
	responded := false
	for _, p := range replies {
		if p.InPlace && p.Choice != nil && !responded && i.Message != nil {
			err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseUpdateMessage,
				Data: &discordgo.InteractionResponseData{
					Content:    i.Message.Content,
					Components: buildComponents(p.Choice),
				},
			})
			if err != nil {
				log.Printf("interaction update failed: %v", err)
			}
			responded = true
			continue
		}
		rest = append(rest, p)
	}
	if !responded {
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if err != nil {
			log.Printf("interaction ack failed: %v", err)
		}
	}
	dg.emit(i.ChannelID, rest)
}

func (dg *DiscordGateway) emit(channelID string, prompts []flow.Prompt) {
	for _, p := range prompts {
		msg := &discordgo.MessageSend{Content: p.Text}
		if p.Choice != nil {
			msg.Components = buildComponents(p.Choice)
		}
		// Discord has no contact-share button; the phone step falls back to
		// a typed answer, which the engine accepts anyway.
		if msg.Content == "" && msg.Components == nil {
			continue
		}
		if _, err := dg.Session.ChannelMessageSendComplex(channelID, msg); err != nil {
			log.Printf("discord send failed: %v", err)
		}
	}
}

func buildComponents(c *flow.ChoiceView) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	switch c.Mode {
	case flow.ModeSingle:
		for _, o := range c.Options {
			rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: o.Label, Style: discordgo.PrimaryButton, CustomID: "pick::" + o.Value},
			}})
		}
	case flow.ModeMulti:
		for _, o := range c.Options {
			style := discordgo.SecondaryButton
			mark := "⬜️"
			if o.Selected {
				style = discordgo.SuccessButton
				mark = "☑️"
			}
			rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: mark + " " + o.Label, Style: style, CustomID: "opt::" + o.Value},
			}})
		}
		var extra []discordgo.MessageComponent
		if c.WithOther {
			extra = append(extra, discordgo.Button{Label: c.OtherLabel, Style: discordgo.SecondaryButton, CustomID: "alt::text"})
		}
		if c.WithDone {
			extra = append(extra, discordgo.Button{Label: c.DoneLabel, Style: discordgo.PrimaryButton, CustomID: "done::ok"})
		}
		if len(extra) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: extra})
		}
	case flow.ModeConfirm:
		var btns []discordgo.MessageComponent
		for _, o := range c.Options {
			style := discordgo.SuccessButton
			if o.Value == "restart" {
				style = discordgo.DangerButton
			}
			btns = append(btns, discordgo.Button{Label: o.Label, Style: style, CustomID: "confirm::" + o.Value})
		}
		rows = append(rows, discordgo.ActionsRow{Components: btns})
	}
	return rows
}
