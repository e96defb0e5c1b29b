package etl

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/models"
	"github.com/martforge/martforge-api/internal/repository"
)

// FailureListener is told about failed runs after the run log has been
// finalized. Used for ops alerting; a nil listener is fine.
type FailureListener interface {
	RunFailed(ctx context.Context, jobName string, orgID int, reason string)
}

// Runner sequences the extract/transform/load lifecycle around a Job. It
// writes the run-log row before extraction, finalizes it exactly once at the
// end, and never lets a job failure escape as an error: the outcome of Run
// is always just a boolean plus the log record.
type Runner struct {
	mart     database.MartStore
	logs     repository.ETLLogRepository
	logger   zerolog.Logger
	listener FailureListener
}

func NewRunner(mart database.MartStore, logs repository.ETLLogRepository, logger zerolog.Logger) *Runner {
	return &Runner{
		mart:   mart,
		logs:   logs,
		logger: logger.With().Str("component", "etl").Logger(),
	}
}

// WithFailureListener registers a listener for failed runs.
func (r *Runner) WithFailureListener(listener FailureListener) *Runner {
	r.listener = listener
	return r
}

// Run executes one job for one tenant. Returns true on success, including
// the empty-extract no-op case.
func (r *Runner) Run(ctx context.Context, job Job, orgID int) (ok bool) {
	logger := r.logger.With().
		Str("job", job.Name()).
		Int("org_id", orgID).
		Logger()

	// A missing log id disables the completion update but does not abort
	// the job; moving data matters more than the audit row.
	runID, err := r.logs.StartRun(job.Name(), orgID, job.SourceSystem(), job.TargetTable())
	if err != nil {
		logger.Warn().Err(err).Msg("failed to write run-log row, continuing without it")
		runID = 0
	}

	var (
		loader    *Loader
		processed int
	)

	// Panics anywhere in extract/transform/load are contained here: the run
	// is marked failed and Run reports false, same as an ordinary error.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("job panicked")
			r.fail(ctx, logger, runID, job, orgID, processed, loader, fmt.Sprintf("panic: %v", rec))
			ok = false
		}
	}()

	logger.Info().Msg("job started")

	rows, err := job.Extract(ctx)
	if err != nil {
		r.fail(ctx, logger, runID, job, orgID, 0, nil, err.Error())
		return false
	}
	processed = len(rows)

	// No new data this period is a successful no-op, not an error.
	if len(rows) == 0 {
		r.complete(logger, runID, 0, nil)
		logger.Info().Msg("no source rows, job complete")
		return true
	}

	records, err := job.Transform(rows)
	if err != nil {
		r.fail(ctx, logger, runID, job, orgID, processed, nil, err.Error())
		return false
	}

	loader = NewLoader(r.mart, job.TargetTable())
	if err := job.Load(ctx, records, loader); err != nil {
		r.fail(ctx, logger, runID, job, orgID, processed, loader, err.Error())
		return false
	}

	r.complete(logger, runID, len(rows), loader)
	logger.Info().
		Int("processed", len(rows)).
		Int("inserted", loader.Inserted()).
		Int("updated", loader.Updated()).
		Msg("job complete")
	return true
}

func (r *Runner) complete(logger zerolog.Logger, runID int64, processed int, loader *Loader) {
	if runID == 0 {
		return
	}
	inserted, updated := 0, 0
	if loader != nil {
		inserted, updated = loader.Inserted(), loader.Updated()
	}
	if err := r.logs.CompleteRun(runID, models.RunStatusSuccess, processed, inserted, updated, ""); err != nil {
		logger.Warn().Err(err).Msg("failed to finalize run-log row")
	}
}

func (r *Runner) fail(ctx context.Context, logger zerolog.Logger, runID int64, job Job, orgID int, processed int, loader *Loader, reason string) {
	logger.Error().Str("reason", reason).Msg("job failed")
	if runID != 0 {
		inserted, updated := 0, 0
		if loader != nil {
			inserted, updated = loader.Inserted(), loader.Updated()
		}
		if err := r.logs.CompleteRun(runID, models.RunStatusFailed, processed, inserted, updated, reason); err != nil {
			logger.Warn().Err(err).Msg("failed to finalize run-log row")
		}
	}
	if r.listener != nil {
		r.listener.RunFailed(ctx, job.Name(), orgID, reason)
	}
}
