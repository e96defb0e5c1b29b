// Package registry answers two questions for the orchestrator: which tenants
// should ETL run for, and how do we reach each one's source database.
package registry

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/config"
	"github.com/martforge/martforge-api/internal/credentials"
	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/models"
	"github.com/martforge/martforge-api/internal/repository"
)

// reservedSchemaPrefix marks organizations whose schema does not live on a
// Softbase source server; those are the VITAL product line and are excluded
// from Evolution discovery.
const reservedSchemaPrefix = "vital"

// TenantSource is the registry surface the orchestrator depends on.
type TenantSource interface {
	DiscoverTenants() []models.Organization
	DiscoverVitalTenants() []models.Organization
	GetTenant(orgID int) (models.Organization, error)
	BuildConnector(org models.Organization) (database.SourceConnector, error)
}

type Registry struct {
	orgs     repository.OrganizationRepository
	defaults config.SourceConfig
	fallback []config.FallbackTenant
	logger   zerolog.Logger

	// openConnector is swapped out in tests.
	openConnector func(params database.SourceParams) (database.SourceConnector, error)
}

func New(orgs repository.OrganizationRepository, defaults config.SourceConfig, fallback []config.FallbackTenant, logger zerolog.Logger) *Registry {
	return &Registry{
		orgs:          orgs,
		defaults:      defaults,
		fallback:      fallback,
		logger:        logger.With().Str("component", "registry").Logger(),
		openConnector: database.NewSQLServerConnector,
	}
}

// DiscoverTenants returns every active Evolution organization with a usable
// schema name. If the backing query fails, it degrades to the configured
// fallback tenant list instead of returning nothing, so a transient mart
// outage never silently turns the nightly pass into a no-op.
func (r *Registry) DiscoverTenants() []models.Organization {
	orgs, err := r.orgs.List()
	if err != nil {
		r.logger.Error().Err(err).Msg("tenant discovery failed, using fallback tenant list")
		return r.fallbackTenants()
	}

	tenants := make([]models.Organization, 0, len(orgs))
	for _, org := range orgs {
		if !org.IsActive {
			continue
		}
		schema := strings.TrimSpace(org.SchemaName)
		if schema == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(schema), reservedSchemaPrefix) {
			continue
		}
		if org.FiscalYearStartMonth < 1 || org.FiscalYearStartMonth > 12 {
			org.FiscalYearStartMonth = 11
		}
		tenants = append(tenants, org)
	}
	return tenants
}

// DiscoverVitalTenants returns the active organizations of the VITAL product
// line. Their jobs read third-party APIs, not a source database.
func (r *Registry) DiscoverVitalTenants() []models.Organization {
	orgs, err := r.orgs.List()
	if err != nil {
		r.logger.Error().Err(err).Msg("vital tenant discovery failed")
		return nil
	}
	tenants := make([]models.Organization, 0)
	for _, org := range orgs {
		if org.IsActive && org.Platform == models.PlatformVital {
			tenants = append(tenants, org)
		}
	}
	return tenants
}

func (r *Registry) GetTenant(orgID int) (models.Organization, error) {
	return r.orgs.Get(orgID)
}

// BuildConnector opens a source connection for one tenant. Tenants carrying
// their own credentials get a dedicated connector; if their sealed password
// can't be opened, we log and fall back to the shared default server rather
// than failing the whole discovery pass.
func (r *Registry) BuildConnector(org models.Organization) (database.SourceConnector, error) {
	if org.HasOwnSource() {
		password, err := credentials.Open(org.SourcePasswordSealed)
		if err != nil {
			r.logger.Warn().Err(err).
				Int("org_id", org.ID).
				Msg("failed to open tenant source password, falling back to default connector")
		} else {
			dbName := org.SourceDatabase
			if dbName == "" {
				dbName = r.defaults.Database
			}
			return r.openConnector(database.SourceParams{
				Host:     org.SourceHost,
				Port:     org.SourcePort,
				Database: dbName,
				Username: org.SourceUser,
				Password: password,
			})
		}
	}

	return r.openConnector(database.SourceParams{
		Host:     r.defaults.Host,
		Port:     r.defaults.Port,
		Database: r.defaults.Database,
		Username: r.defaults.Username,
		Password: r.defaults.Password,
	})
}

func (r *Registry) fallbackTenants() []models.Organization {
	tenants := make([]models.Organization, 0, len(r.fallback))
	for _, fb := range r.fallback {
		month := fb.FiscalYearStartMonth
		if month < 1 || month > 12 {
			month = 11
		}
		tenants = append(tenants, models.Organization{
			ID:                   fb.OrgID,
			Name:                 fb.Name,
			SchemaName:           fb.SchemaName,
			Platform:             models.PlatformEvolution,
			FiscalYearStartMonth: month,
			IsActive:             true,
		})
	}
	return tenants
}
