package etl

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/models"
	"github.com/martforge/martforge-api/internal/registry"
)

// Orchestrator fans a job out across every discovered tenant. The loop is
// deliberately sequential: tenants share no state, and the source systems
// are small enough that parallelism buys nothing worth the extra failure
// modes.
type Orchestrator struct {
	tenants registry.TenantSource
	runner  *Runner
	logger  zerolog.Logger
}

func NewOrchestrator(tenants registry.TenantSource, runner *Runner, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		tenants: tenants,
		runner:  runner,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
	}
}

// RunForAllTenants runs one job definition against every discovered tenant,
// sequentially, and returns the per-tenant outcome keyed by organization id.
// Display names are not unique across tenants, so they make a lossy key.
// One tenant's failure never aborts the loop over the rest.
func (o *Orchestrator) RunForAllTenants(ctx context.Context, def JobDefinition) map[int]bool {
	passID := uuid.NewString()
	logger := o.logger.With().Str("job", def.Name).Str("pass_id", passID).Logger()

	var tenants []models.Organization
	if def.Platform == models.PlatformVital {
		tenants = o.tenants.DiscoverVitalTenants()
	} else {
		tenants = o.tenants.DiscoverTenants()
	}
	logger.Info().Int("tenants", len(tenants)).Msg("starting tenant fan-out")

	results := make(map[int]bool, len(tenants))
	for _, org := range tenants {
		results[org.ID] = o.runTenant(ctx, logger, def, org)
	}

	logger.Info().Int("tenants", len(tenants)).Msg("tenant fan-out complete")
	return results
}

// RunForOneTenant runs one job definition for a single organization, looked
// up by id. Used for manual re-runs from the admin API.
func (o *Orchestrator) RunForOneTenant(ctx context.Context, def JobDefinition, orgID int) bool {
	logger := o.logger.With().Str("job", def.Name).Int("org_id", orgID).Logger()

	org, err := o.tenants.GetTenant(orgID)
	if err != nil {
		logger.Error().Err(err).Msg("tenant lookup failed")
		return false
	}
	return o.runTenant(ctx, logger, def, org)
}

// runTenant contains a single tenant's run. The Runner already converts job
// failures into a boolean, but connector construction and anything that
// somehow escapes it is caught here too, so the fan-out loop survives any
// single tenant.
func (o *Orchestrator) runTenant(ctx context.Context, logger zerolog.Logger, def JobDefinition, org models.Organization) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Int("org_id", org.ID).
				Str("tenant", org.Name).
				Interface("panic", rec).
				Msg("tenant run panicked")
			ok = false
		}
	}()

	var src database.SourceConnector
	if def.NeedsSource() {
		var err error
		src, err = o.tenants.BuildConnector(org)
		if err != nil {
			logger.Error().Err(err).
				Int("org_id", org.ID).
				Str("tenant", org.Name).
				Msg("failed to build source connector")
			return false
		}
		defer func() {
			if cerr := src.Close(); cerr != nil {
				logger.Warn().Err(cerr).Int("org_id", org.ID).Msg("failed to close source connector")
			}
		}()
	}

	job := def.New(org, src)
	if job == nil {
		logger.Error().Int("org_id", org.ID).Msg("job factory returned nil")
		return false
	}
	return o.runner.Run(ctx, job, org.ID)
}

// AllSucceeded reduces a per-tenant result map to a single outcome.
func AllSucceeded(results map[int]bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

// Summarize renders a result map for logs.
func Summarize(results map[int]bool) string {
	succeeded, failed := 0, 0
	for _, ok := range results {
		if ok {
			succeeded++
		} else {
			failed++
		}
	}
	return fmt.Sprintf("%d succeeded, %d failed", succeeded, failed)
}
