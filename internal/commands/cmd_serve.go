package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/formbot/internal/formbot/keepalive"
	"github.com/colonyops/formbot/internal/integration/slack"
	"github.com/colonyops/formbot/internal/profiler"
	"github.com/colonyops/formbot/internal/server"
)

type ServeCmd struct {
	flags *Flags
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the bot",
		UsageText: "formbot serve",
		Description: `Starts the HTTP server receiving Slack events, the reminder scheduler
and, when server.keepalive_url is set, the keepalive pinger.

Stops cleanly on SIGINT or SIGTERM.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config

	b, err := openBot(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := slack.NewEventsHandler(cfg.Slack.SigningSecret, b.app.Intake)
	status := func(ctx context.Context) (any, error) { return b.app.Router.Status(ctx) }
	srv := server.New(cfg.Server, events, status, b.registry)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return b.app.Scheduler.Start(gctx) })
	if cfg.Server.PprofAddr != "" {
		g.Go(func() error { return profiler.Serve(gctx, cfg.Server.PprofAddr) })
	}
	if cfg.Server.KeepaliveURL != "" {
		g.Go(func() error {
			keepalive.Start(gctx, nil, cfg.Server.KeepaliveURL, cfg.Server.KeepaliveInterval)
			return nil
		})
	}

	err = g.Wait()
	events.Wait()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	log.Info().Msg("formbot stopped")
	return nil
}
