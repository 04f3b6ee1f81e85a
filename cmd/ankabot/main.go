package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finlit/ankabot/internal/flow"
	"github.com/finlit/ankabot/internal/forms"
	"github.com/finlit/ankabot/internal/gateway"
	"github.com/finlit/ankabot/internal/intake"
	"github.com/finlit/ankabot/internal/observability"
	"github.com/finlit/ankabot/internal/sink"
	"github.com/finlit/ankabot/internal/store"
	"github.com/finlit/ankabot/pkg/config"
)

func main() {
	observability.PrintBanner()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loc, err := time.LoadLocation(cfg.App.LocalTZ)
	if err != nil {
		log.Fatalf("invalid LOCAL_TZ %q: %v", cfg.App.LocalTZ, err)
	}

	// Load the form: an external file wins over a builtin name.
	var form *forms.Form
	if cfg.App.FormFile != "" {
		form, err = forms.LoadFile(cfg.App.FormFile)
	} else {
		form, err = forms.Builtin(cfg.App.Form)
	}
	if err != nil {
		log.Fatal(err)
	}

	registrations, err := store.Open(cfg.Storage.DBPath, loc)
	if err != nil {
		log.Fatal(err)
	}
	defer registrations.Close()

	events := observability.NewLogger(cfg.Storage.AuditPath)

	engine := flow.NewEngine(form.Table, form.Name, loc)
	registry := flow.NewRegistry()

	tgCfg, ok := cfg.GetTelegramConfig()
	if !ok {
		log.Fatal("Telegram gateway is not enabled or token is missing")
	}

	// The sink sends through the gateway and the gateway routes events into
	// the service, so build the service first and fill the sink in after
	// the gateway exists.
	service := intake.NewService(engine, registry, nil, events)

	tg, err := gateway.NewTelegramGateway(tgCfg.Token, service, registrations, nil, events, cfg.IsOrganizer, loc)
	if err != nil {
		log.Fatal(err)
	}

	texts := form.Table.Texts()

	// One exporter for the one export file, shared by every sink and the
	// /export command, so refreshes never write the workbook concurrently.
	exporter := sink.NewExporter(registrations, cfg.Storage.ExcelPath, form.Table.Steps())

	tgSink := sink.New(
		registrations,
		tg,
		func(rec *flow.CompletedRecord) string { return gateway.Summary(rec, texts, cfg.App.LocalTZ) },
		cfg.Organizer.IDs,
		exporter,
		texts.Completed,
		events,
	)
	service.Sink = tgSink
	tg.Sink = tgSink

	gateways := []string{"telegram"}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := tg.Start(); err != nil {
			log.Printf("GATEWAY CRITICAL ERROR: %v", err)
			stop() // stop caller if gateway dies
		}
	}()

	// Optional second transport over the same store but its own session
	// space, so a Discord identity never collides with a Telegram one.
	var dc *gateway.DiscordGateway
	if dcCfg, ok := cfg.GetDiscordConfig(); ok {
		dcService := intake.NewService(engine, flow.NewRegistry(), nil, events)
		dc, err = gateway.NewDiscordGateway(dcCfg.Token, dcService)
		if err != nil {
			log.Printf("Warning: Discord gateway disabled: %v", err)
			dc = nil
		} else {
			dcService.Sink = sink.New(
				registrations,
				dc,
				func(rec *flow.CompletedRecord) string { return gateway.PlainSummary(rec, texts, cfg.App.LocalTZ) },
				nil, // organizer DMs go out over Telegram only
				exporter,
				texts.Completed,
				events,
			)
			if err := dc.Start(); err != nil {
				log.Printf("Warning: Discord gateway failed to start: %v", err)
				dc = nil
			} else {
				gateways = append(gateways, "discord")
			}
		}
	}

	observability.PrintStartup(form.Name, form.Table.Len(), len(cfg.Organizer.IDs), gateways)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events.LogHeartbeat(registry.Len())
			}
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	if dc != nil {
		_ = dc.Stop()
	}
	_ = tg.Stop()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("Registration bot stopped. Goodbye.")
}
