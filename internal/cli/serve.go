package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/agendabot/internal/channel"
	"github.com/soyeahso/agendabot/internal/channel/irc"
	"github.com/soyeahso/agendabot/internal/channel/ws"
	"github.com/soyeahso/agendabot/internal/gateway"
	"github.com/soyeahso/agendabot/internal/hooks"
	"github.com/soyeahso/agendabot/internal/logging"
	"github.com/soyeahso/agendabot/internal/reminder"
	"github.com/soyeahso/agendabot/internal/routing"
	"github.com/soyeahso/agendabot/internal/session"
	"github.com/soyeahso/agendabot/internal/sheets"
	"github.com/soyeahso/agendabot/internal/version"
)

const sweepInterval = time.Minute

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: chat channels, reminder scheduler and HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			l, closeLog, err := logging.Open(logging.Options{
				Level: cfg.Logging.Level,
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			})
			if err != nil {
				return err
			}
			defer closeLog()
			log = l

			a, err := newApp(cfg, paths.Database(&cfg), log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, a)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "gateway port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "gateway bind mode: loopback or lan (overrides config)")
	return cmd
}

// serve runs every long-lived component until ctx is cancelled.
func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	channels := channel.NewRegistry(log)

	if cfg.Channels.IRC != nil {
		channels.Register(irc.New(*cfg.Channels.IRC, log))
	}

	gwOpts := []gateway.ServerOption{
		gateway.WithStore(a.store),
		gateway.WithChannels(channels),
		gateway.WithSessions(a.sessions.Len),
		gateway.WithLocation(a.loc),
	}
	if wsCfg := cfg.Channels.WebSocket; wsCfg != nil && wsCfg.Enabled {
		wsChan := ws.New(wsCfg.AllowedOrigins, log)
		channels.Register(wsChan)
		gwOpts = append(gwOpts, gateway.WithWebSocket(wsCfg.Path, wsChan, wsCfg.AllowedOrigins))
	}

	router := routing.NewRouter(channels, a.manager, a.hooks, 0, log)
	router.Wire(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Reminders.IsEnabled() {
		rcfg, err := schedulerConfig(cfg.Reminders, a.loc)
		if err != nil {
			return err
		}
		sched, err := reminder.New(rcfg, a.store, router, a.hooks, nil, log)
		if err != nil {
			return fmt.Errorf("reminder scheduler: %w", err)
		}
		g.Go(func() error { return sched.Run(gctx) })
	} else {
		log.Warn().Msg("reminders disabled")
	}

	if cfg.Sheets.Enabled {
		values, err := sheets.NewAPIValues(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			return fmt.Errorf("sheets: %w", err)
		}
		exp := sheets.New(values, cfg.Sheets.SpreadsheetID, cfg.Sheets.Sheet, a.loc, log)
		exp.Register(a.hooks)
		g.Go(func() error { return exp.Run(gctx) })
	}

	if cfg.Gateway.IsEnabled() {
		gw := gateway.New(cfg.Gateway, log, gwOpts...)
		g.Go(func() error { return gw.Start(gctx) })
	}

	g.Go(func() error {
		sweepSessions(gctx, a.sessions, sweepInterval)
		return nil
	})

	channels.StartAll(gctx)
	a.hooks.Emit(ctx, hooks.EventServeStart, map[string]any{
		"version":  version.Version,
		"channels": channels.List(),
	})
	log.Info().Strs("channels", channels.List()).Msg("agendabot running")

	err := g.Wait()

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	channels.StopAll(shutdown)
	a.hooks.Emit(shutdown, hooks.EventServeStop, nil)
	log.Info().Msg("agendabot stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func sweepSessions(ctx context.Context, repo *session.Repository, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := repo.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Msg("idle sessions swept")
			}
		}
	}
}
