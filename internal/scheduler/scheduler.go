// Package scheduler drives the recurring ETL passes. Evolution jobs run on
// the nightly schedule; VITAL jobs poll their APIs more often. Each pass
// fans every catalog job of its platform out across all tenants.
package scheduler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/config"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
	"github.com/martforge/martforge-api/internal/notification"
)

type Scheduler struct {
	cron         *cron.Cron
	orchestrator *etl.Orchestrator
	catalog      []etl.JobDefinition
	notifier     notification.Service
	logger       zerolog.Logger
}

func New(orchestrator *etl.Orchestrator, catalog []etl.JobDefinition, notifier notification.Service, logger zerolog.Logger) *Scheduler {
	schedLogger := logger.With().Str("component", "scheduler").Logger()
	adapter := cronLogger{logger: schedLogger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			// A slow pass must never stack behind itself; the next tick
			// is simply skipped.
			cron.WithChain(
				cron.SkipIfStillRunning(adapter),
				cron.Recover(adapter),
			),
		),
		orchestrator: orchestrator,
		catalog:      catalog,
		notifier:     notifier,
		logger:       schedLogger,
	}
}

// Register wires the two platform passes onto their cron specs.
func (s *Scheduler) Register(cfg config.ScheduleConfig) error {
	if _, err := s.cron.AddFunc(cfg.Evolution, func() {
		s.RunPlatformPass(context.Background(), models.PlatformEvolution)
	}); err != nil {
		return errors.Wrapf(err, "invalid evolution schedule %q", cfg.Evolution)
	}
	if _, err := s.cron.AddFunc(cfg.Vital, func() {
		s.RunPlatformPass(context.Background(), models.PlatformVital)
	}); err != nil {
		return errors.Wrapf(err, "invalid vital schedule %q", cfg.Vital)
	}
	return nil
}

// RunPlatformPass runs every catalog job of one platform across all tenants.
// Also called directly by the admin API for manual full passes.
func (s *Scheduler) RunPlatformPass(ctx context.Context, platform models.PlatformKind) {
	s.logger.Info().Str("platform", string(platform)).Msg("platform pass started")

	for _, def := range s.catalog {
		if def.Platform != platform {
			continue
		}
		results := s.orchestrator.RunForAllTenants(ctx, def)
		summary := etl.Summarize(results)
		s.logger.Info().
			Str("job", def.Name).
			Str("summary", summary).
			Msg("job pass finished")
		if s.notifier != nil {
			_ = s.notifier.NotifyPassComplete(ctx, def.Name, summary, etl.AllSucceeded(results))
		}
	}

	s.logger.Info().Str("platform", string(platform)).Msg("platform pass complete")
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("entries", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop halts scheduling and returns a context that is done once any
// in-flight pass has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zerolog to cron's key/value logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.event(l.logger.Debug(), keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.event(l.logger.Error().Err(err), keysAndValues).Msg(msg)
}

func (l cronLogger) event(evt *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		evt = evt.Interface(key, keysAndValues[i+1])
	}
	return evt
}
