// Package etl is the extract/transform/load framework every reporting job
// runs on. Concrete jobs implement the Job interface; the Runner sequences
// the lifecycle, owns the run log, and contains all failures so callers only
// ever see a boolean outcome.
package etl

import (
	"context"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/models"
)

// Job is one unit of extract/transform/load work, scoped to a single tenant.
// A job instance is built fresh for every run and never reused.
type Job interface {
	// Name identifies the job in the run log.
	Name() string
	// SourceSystem labels where the data came from (softbase, hubspot, ...).
	SourceSystem() string
	// TargetTable is the mart table this job writes, without schema prefix.
	TargetTable() string

	// Extract reads source rows. An empty result is not an error; it means
	// "no new data this period" and the run succeeds with zero counts.
	Extract(ctx context.Context) ([]database.Row, error)
	// Transform shapes source rows into target-table records.
	Transform(rows []database.Row) ([]database.Row, error)
	// Load persists records through the loader, which tracks the
	// inserted/updated counters as it goes.
	Load(ctx context.Context, records []database.Row, loader *Loader) error
}

// JobFactory builds a job instance bound to one tenant. Evolution jobs get a
// live source connector; VITAL jobs read third-party APIs and receive nil.
type JobFactory func(org models.Organization, src database.SourceConnector) Job

// JobDefinition is one catalog entry: a named job and how to instantiate it.
type JobDefinition struct {
	Name     string
	Platform models.PlatformKind
	New      JobFactory
}

// NeedsSource reports whether tenants of this job require a source-database
// connector.
func (d JobDefinition) NeedsSource() bool {
	return d.Platform == models.PlatformEvolution
}
