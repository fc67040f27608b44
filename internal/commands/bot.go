package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/formbot/internal/core/config"
	"github.com/colonyops/formbot/internal/core/form"
	"github.com/colonyops/formbot/internal/core/notify"
	"github.com/colonyops/formbot/internal/data/db"
	"github.com/colonyops/formbot/internal/data/stores"
	"github.com/colonyops/formbot/internal/formbot"
	"github.com/colonyops/formbot/internal/integration/slack"
	"github.com/colonyops/formbot/internal/store/jsonfile"
)

// storage is an opened form store and its delivery log.
type storage struct {
	forms      form.Store
	deliveries notify.Log
	close      func() error
}

// openStorage opens the configured backend. With autoRecover set, a corrupted
// SQLite database is moved aside and a fresh one is created.
func openStorage(cfg *config.Config, autoRecover bool) (*storage, error) {
	switch cfg.Database.Driver {
	case config.DriverJSONFile:
		file := jsonfile.Open(cfg.FormsFile())
		return &storage{
			forms:      jsonfile.NewFormStore(file),
			deliveries: jsonfile.NewDeliveryLog(file),
			close:      func() error { return nil },
		}, nil
	default:
		opts := db.OpenOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			BusyTimeout:  cfg.Database.BusyTimeout,
		}

		database, err := db.Open(cfg.DataDir, opts)
		if err != nil && autoRecover && stores.IsCorruptionError(err) {
			backup, recErr := stores.RecoverFromCorruption(cfg.DataDir)
			if recErr != nil {
				return nil, errors.Join(err, recErr)
			}
			log.Warn().Err(err).Str("backup", backup).Msg("database was corrupted, starting with an empty one")
			database, err = db.Open(cfg.DataDir, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}

		return &storage{
			forms:      stores.NewFormStore(database),
			deliveries: stores.NewDeliveryLog(database),
			close:      database.Close,
		}, nil
	}
}

// storageAccess lets the doctor probe the store without the automatic
// recovery openStorage applies.
func storageAccess(cfg *config.Config) formbot.StorageAccess {
	access := formbot.StorageAccess{
		Probe: func(ctx context.Context) (int, int, error) {
			s, err := openStorage(cfg, false)
			if err != nil {
				return 0, 0, err
			}
			defer func() { _ = s.close() }()

			forms, err := s.forms.List(ctx)
			if err != nil {
				return 0, 0, err
			}
			channels, err := s.forms.ListChannels(ctx)
			if err != nil {
				return 0, 0, err
			}
			return len(forms), len(channels), nil
		},
	}

	if cfg.Database.Driver == config.DriverJSONFile {
		file := jsonfile.Open(cfg.FormsFile())
		access.IsCorrupt = jsonfile.IsCorrupt
		access.Recover = file.Recover
	} else {
		access.IsCorrupt = stores.IsCorruptionError
		access.Recover = func() (string, error) { return stores.RecoverFromCorruption(cfg.DataDir) }
	}
	return access
}

// bot is everything a command needs to drive the engine.
type bot struct {
	app      *formbot.App
	registry *prometheus.Registry
	storage  *storage
}

func openBot(cfg *config.Config) (*bot, error) {
	s, err := openStorage(cfg, true)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := formbot.NewApp(cfg, formbot.Deps{
		Forms:      s.forms,
		Deliveries: s.deliveries,
		Notifier:   newNotifier(cfg),
		Metrics:    formbot.NewMetrics(registry),
	})
	if err != nil {
		_ = s.close()
		return nil, err
	}

	return &bot{app: app, registry: registry, storage: s}, nil
}

func (b *bot) Close() error {
	return b.storage.close()
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Slack.BotToken == "" {
		log.Warn().Msg("no slack bot token, outbound messages are discarded")
		return notify.Nop{}
	}
	return slack.NewClient(cfg.Slack.BotToken, cfg.Slack.Timeout)
}
