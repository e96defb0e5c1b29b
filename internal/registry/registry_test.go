package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/config"
	"github.com/martforge/martforge-api/internal/credentials"
	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/models"
)

type fakeOrgRepo struct {
	orgs []models.Organization
	err  error
}

func (f *fakeOrgRepo) List() ([]models.Organization, error) {
	return f.orgs, f.err
}

func (f *fakeOrgRepo) Get(orgID int) (models.Organization, error) {
	for _, org := range f.orgs {
		if org.ID == orgID {
			return org, nil
		}
	}
	return models.Organization{}, errors.New("organization not found")
}

type capturingConnector struct {
	params database.SourceParams
}

func (c *capturingConnector) QueryRows(context.Context, string, ...interface{}) ([]database.Row, error) {
	return []database.Row{}, nil
}

func (c *capturingConnector) Close() error { return nil }

func newTestRegistry(repo *fakeOrgRepo, defaults config.SourceConfig, fallback []config.FallbackTenant) (*Registry, *[]database.SourceParams) {
	r := New(repo, defaults, fallback, zerolog.Nop())
	var opened []database.SourceParams
	r.openConnector = func(params database.SourceParams) (database.SourceConnector, error) {
		opened = append(opened, params)
		return &capturingConnector{params: params}, nil
	}
	return r, &opened
}

func TestDiscoverTenantsFilters(t *testing.T) {
	repo := &fakeOrgRepo{orgs: []models.Organization{
		{ID: 1, Name: "Acme", SchemaName: "acme", Platform: models.PlatformEvolution, FiscalYearStartMonth: 11, IsActive: true},
		{ID: 2, Name: "Inactive", SchemaName: "dormant", Platform: models.PlatformEvolution, FiscalYearStartMonth: 11, IsActive: false},
		{ID: 3, Name: "Blank schema", SchemaName: "   ", Platform: models.PlatformEvolution, FiscalYearStartMonth: 11, IsActive: true},
		{ID: 4, Name: "Wellness", SchemaName: "vital_main", Platform: models.PlatformVital, FiscalYearStartMonth: 1, IsActive: true},
		{ID: 5, Name: "Wellness Legacy", SchemaName: "VITAL_old", Platform: models.PlatformVital, FiscalYearStartMonth: 1, IsActive: true},
		{ID: 6, Name: "Bad fiscal month", SchemaName: "bravo", Platform: models.PlatformEvolution, FiscalYearStartMonth: 42, IsActive: true},
	}}
	registry, _ := newTestRegistry(repo, config.SourceConfig{}, nil)

	tenants := registry.DiscoverTenants()
	require.Len(t, tenants, 2)
	assert.Equal(t, 1, tenants[0].ID)
	assert.Equal(t, 6, tenants[1].ID)
	// Out-of-range fiscal months are clamped to the November default.
	assert.Equal(t, 11, tenants[1].FiscalYearStartMonth)
}

func TestDiscoverTenantsFallsBackOnError(t *testing.T) {
	repo := &fakeOrgRepo{err: errors.New("mart unreachable")}
	registry, _ := newTestRegistry(repo, config.SourceConfig{}, []config.FallbackTenant{
		{OrgID: 1, Name: "Acme", SchemaName: "acme", FiscalYearStartMonth: 11},
		{OrgID: 2, Name: "Bravo", SchemaName: "bravo"},
	})

	tenants := registry.DiscoverTenants()
	require.Len(t, tenants, 2)
	assert.Equal(t, "acme", tenants[0].SchemaName)
	assert.True(t, tenants[0].IsActive)
	assert.Equal(t, models.PlatformEvolution, tenants[1].Platform)
	// Unset fiscal month defaults to November.
	assert.Equal(t, 11, tenants[1].FiscalYearStartMonth)
}

func TestDiscoverVitalTenants(t *testing.T) {
	repo := &fakeOrgRepo{orgs: []models.Organization{
		{ID: 1, Name: "Acme", SchemaName: "acme", Platform: models.PlatformEvolution, IsActive: true},
		{ID: 2, Name: "Wellness", SchemaName: "vital_main", Platform: models.PlatformVital, IsActive: true},
		{ID: 3, Name: "Gone", SchemaName: "vital_gone", Platform: models.PlatformVital, IsActive: false},
	}}
	registry, _ := newTestRegistry(repo, config.SourceConfig{}, nil)

	tenants := registry.DiscoverVitalTenants()
	require.Len(t, tenants, 1)
	assert.Equal(t, 2, tenants[0].ID)
}

func TestBuildConnectorUsesDefaultsWithoutOwnSource(t *testing.T) {
	defaults := config.SourceConfig{Host: "shared.example.com", Port: 1433, Database: "evolution", Username: "etl", Password: "secret"}
	registry, opened := newTestRegistry(&fakeOrgRepo{}, defaults, nil)

	_, err := registry.BuildConnector(models.Organization{ID: 1, SchemaName: "acme"})
	require.NoError(t, err)

	require.Len(t, *opened, 1)
	assert.Equal(t, "shared.example.com", (*opened)[0].Host)
	assert.Equal(t, "etl", (*opened)[0].Username)
}

func TestBuildConnectorDecryptsOwnCredentials(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	t.Setenv("MARTFORGE_ENC_KEY", base64.StdEncoding.EncodeToString(key))

	sealed, err := credentials.Seal("tenant-password")
	require.NoError(t, err)

	registry, opened := newTestRegistry(&fakeOrgRepo{}, config.SourceConfig{Host: "shared", Database: "evolution"}, nil)

	org := models.Organization{
		ID:                   3,
		SchemaName:           "acme",
		SourceHost:           "acme-sql.example.com",
		SourcePort:           1433,
		SourceUser:           "acme_etl",
		SourcePasswordSealed: sealed,
	}
	_, err = registry.BuildConnector(org)
	require.NoError(t, err)

	require.Len(t, *opened, 1)
	assert.Equal(t, "acme-sql.example.com", (*opened)[0].Host)
	assert.Equal(t, "tenant-password", (*opened)[0].Password)
	// The tenant did not name a database, so the shared default applies.
	assert.Equal(t, "evolution", (*opened)[0].Database)
}

func TestBuildConnectorFallsBackOnBadSeal(t *testing.T) {
	key := make([]byte, 32)
	t.Setenv("MARTFORGE_ENC_KEY", base64.StdEncoding.EncodeToString(key))

	defaults := config.SourceConfig{Host: "shared.example.com", Username: "etl", Password: "shared-secret"}
	registry, opened := newTestRegistry(&fakeOrgRepo{}, defaults, nil)

	org := models.Organization{
		ID:                   4,
		SchemaName:           "acme",
		SourceHost:           "acme-sql.example.com",
		SourceUser:           "acme_etl",
		SourcePasswordSealed: []byte("not a valid ciphertext"),
	}
	_, err := registry.BuildConnector(org)
	require.NoError(t, err)

	require.Len(t, *opened, 1)
	assert.Equal(t, "shared.example.com", (*opened)[0].Host)
	assert.Equal(t, "shared-secret", (*opened)[0].Password)
}
