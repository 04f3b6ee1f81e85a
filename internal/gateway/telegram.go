package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/finlit/ankabot/internal/flow"
	"github.com/finlit/ankabot/internal/intake"
	"github.com/finlit/ankabot/internal/observability"
	"github.com/finlit/ankabot/internal/sink"
	"github.com/finlit/ankabot/internal/store"
)

// TelegramGateway demultiplexes Telegram updates into flow events and
// renders the engine's prompts as messages and inline keyboards. Updates are
// handled in arrival order, which keeps per-identity event ordering trivial.
type TelegramGateway struct {
	Bot     *tgbotapi.BotAPI
	Service *intake.Service
	Store   *store.Store
	Sink    *sink.Sink
	Events  *observability.Logger
	IsAdmin func(id string) bool
	Loc     *time.Location
}

func NewTelegramGateway(token string, svc *intake.Service, st *store.Store, snk *sink.Sink, events *observability.Logger, isAdmin func(id string) bool, loc *time.Location) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	if loc == nil {
		loc = time.Local
	}
	return &TelegramGateway{
		Bot:     bot,
		Service: svc,
		Store:   st,
		Sink:    snk,
		Events:  events,
		IsAdmin: isAdmin,
		Loc:     loc,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			tg.handleCallback(update.CallbackQuery)
		case update.Message != nil:
			tg.handleMessage(update.Message)
		}
	}
	return nil
}

func (tg *TelegramGateway) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user := intake.User{ID: strconv.FormatInt(msg.From.ID, 10), Username: msg.From.UserName}
	ctx := context.Background()

	if msg.IsCommand() {
		tg.handleCommand(ctx, user, msg)
		return
	}

	ev := flow.Event{Kind: flow.EventText, Text: msg.Text}
	if msg.Contact != nil && msg.Contact.PhoneNumber != "" {
		ev.Text = msg.Contact.PhoneNumber
	}
	tg.emit(msg.Chat.ID, 0, tg.Service.Handle(ctx, user, ev))
}

func (tg *TelegramGateway) handleCommand(ctx context.Context, user intake.User, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		tg.emit(chatID, 0, tg.Service.Handle(ctx, user, flow.Event{Kind: flow.EventStart}))
	case "cancel":
		tg.emit(chatID, 0, tg.Service.Handle(ctx, user, flow.Event{Kind: flow.EventCancel}))
	case "whoami":
		tg.sendText(chatID, fmt.Sprintf("Your user id: %s", user.ID))
	case "help":
		tg.sendText(chatID, strings.Join([]string{
			"Commands:",
			"/start — begin registration",
			"/cancel — cancel the current registration",
			"/whoami — show your user id",
			"/stats — (admin) registration statistics",
			"/export — (admin) send the Excel export",
			"/broadcast <text> — (admin) message everyone registered",
		}, "\n"))
	case "stats":
		tg.handleStats(chatID, user)
	case "export":
		tg.handleExport(chatID, user)
	case "broadcast":
		tg.handleBroadcast(chatID, user, msg.CommandArguments())
	default:
		tg.sendText(chatID, tg.Service.Engine.Texts().NoSession)
	}
}

func (tg *TelegramGateway) handleStats(chatID int64, user intake.User) {
	if !tg.IsAdmin(user.ID) {
		tg.sendText(chatID, "This command is for organizers only.")
		return
	}
	st, err := tg.Store.Stats(time.Now().In(tg.Loc))
	if err != nil {
		tg.sendText(chatID, fmt.Sprintf("Stats failed: %v", err))
		return
	}
	tg.sendText(chatID, fmt.Sprintf("📊 Registrations:\nTotal: %d\nToday: %d\nThis week: %d", st.Total, st.Today, st.Week))
}

func (tg *TelegramGateway) handleExport(chatID int64, user intake.User) {
	if !tg.IsAdmin(user.ID) {
		tg.sendText(chatID, "This command is for organizers only.")
		return
	}
	if err := tg.Sink.RefreshExport(); err != nil {
		tg.sendText(chatID, fmt.Sprintf("Export failed: %v", err))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(tg.Sink.Export.Path()))
	doc.Caption = "Registrations (Excel)"
	if _, err := tg.Bot.Send(doc); err != nil {
		tg.sendText(chatID, fmt.Sprintf("Sending failed: %v", err))
	}
}

func (tg *TelegramGateway) handleBroadcast(chatID int64, user intake.User, text string) {
	if !tg.IsAdmin(user.ID) {
		tg.sendText(chatID, "This command is for organizers only.")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		tg.sendText(chatID, "Usage: /broadcast <text>")
		return
	}
	recipients, err := tg.Store.Recipients()
	if err != nil {
		tg.sendText(chatID, fmt.Sprintf("Broadcast failed: %v", err))
		return
	}
	sent, failed := 0, 0
	for _, id := range recipients {
		if err := tg.Send(id, text); err != nil {
			log.Printf("broadcast to %s failed: %v", id, err)
			failed++
			continue
		}
		sent++
	}
	tg.Events.LogBroadcast(sent, failed)
	tg.sendText(chatID, fmt.Sprintf("Broadcast done: %d sent, %d failed.", sent, failed))
}

func (tg *TelegramGateway) handleCallback(q *tgbotapi.CallbackQuery) {
	// Acknowledge first so the client stops its spinner.
	if _, err := tg.Bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Printf("callback ack failed: %v", err)
	}

	ev, ok := parseCallback(q.Data)
	if !ok || q.Message == nil {
		return
	}
	user := intake.User{ID: strconv.FormatInt(q.From.ID, 10), Username: q.From.UserName}
	replies := tg.Service.Handle(context.Background(), user, ev)
	tg.emit(q.Message.Chat.ID, q.Message.MessageID, replies)
}

// emit renders the engine's prompts. In-place prompts replace the keyboard
// of the message the callback came from; everything else is a new message.
func (tg *TelegramGateway) emit(chatID int64, editMsgID int, prompts []flow.Prompt) {
	for _, p := range prompts {
		if p.InPlace && p.Choice != nil && editMsgID != 0 {
			edit := tgbotapi.NewEditMessageReplyMarkup(chatID, editMsgID, buildKeyboard(p.Choice))
			if _, err := tg.Bot.Send(edit); err != nil {
				log.Printf("keyboard edit failed: %v", err)
			}
			continue
		}

		msg := tgbotapi.NewMessage(chatID, p.Text)
		if p.Choice != nil {
			msg.ReplyMarkup = buildKeyboard(p.Choice)
		} else if p.Contact {
			kb := tgbotapi.NewReplyKeyboard(
				tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(p.ContactLabel)),
			)
			kb.ResizeKeyboard = true
			kb.OneTimeKeyboard = true
			msg.ReplyMarkup = kb
		}
		if _, err := tg.Bot.Send(msg); err != nil {
			log.Printf("send failed: %v", err)
		}
	}
}

func buildKeyboard(c *flow.ChoiceView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	switch c.Mode {
	case flow.ModeSingle:
		for _, o := range c.Options {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(o.Label, "pick::"+o.Value),
			))
		}
	case flow.ModeMulti:
		for _, o := range c.Options {
			mark := "⬜️"
			if o.Selected {
				mark = "☑️"
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(mark+" "+o.Label, "opt::"+o.Value),
			))
		}
		var extra []tgbotapi.InlineKeyboardButton
		if c.WithOther {
			extra = append(extra, tgbotapi.NewInlineKeyboardButtonData(c.OtherLabel, "alt::text"))
		}
		if c.WithDone {
			extra = append(extra, tgbotapi.NewInlineKeyboardButtonData(c.DoneLabel, "done::ok"))
		}
		if len(extra) > 0 {
			rows = append(rows, extra)
		}
	case flow.ModeConfirm:
		for _, o := range c.Options {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(o.Label, "confirm::"+o.Value),
			))
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (tg *TelegramGateway) sendText(chatID int64, text string) {
	if _, err := tg.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("send failed: %v", err)
	}
}

// Send delivers sink output: receipts, organizer notifications, broadcasts.
// These carry the HTML summary, so parse mode is HTML.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "HTML"
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
