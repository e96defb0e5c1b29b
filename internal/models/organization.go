package models

import "time"

// PlatformKind identifies which product line an organization belongs to.
type PlatformKind string

const (
	PlatformEvolution PlatformKind = "evolution" // Softbase Evolution dealership tenants
	PlatformVital     PlatformKind = "vital"     // VITAL wellness analytics tenants
)

// Organization describes one ETL tenant: who it is, which source schema its
// data lives under, and how to reach its source database. Descriptors are
// rebuilt from the organizations table on every discovery pass and carry no
// state between orchestration runs.
type Organization struct {
	ID                   int          `json:"id" db:"id"`
	Name                 string       `json:"name" db:"name"`
	SchemaName           string       `json:"schema_name" db:"schema_name"`
	Platform             PlatformKind `json:"platform_kind" db:"platform_kind"`
	SourceHost           string       `json:"source_host,omitempty" db:"source_host"`
	SourcePort           int          `json:"source_port,omitempty" db:"source_port"`
	SourceDatabase       string       `json:"source_database,omitempty" db:"source_database"`
	SourceUser           string       `json:"source_user,omitempty" db:"source_user"`
	SourcePasswordSealed []byte       `json:"-" db:"source_password"`
	FiscalYearStartMonth int          `json:"fiscal_year_start_month" db:"fiscal_year_start_month"`
	IsActive             bool         `json:"is_active" db:"is_active"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// HasOwnSource reports whether the organization carries its own source
// database credentials, as opposed to relying on the shared defaults.
func (o Organization) HasOwnSource() bool {
	return o.SourceHost != "" && o.SourceUser != "" && len(o.SourcePasswordSealed) > 0
}
