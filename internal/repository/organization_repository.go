package repository

import (
	"database/sql"
	"errors"

	"github.com/martforge/martforge-api/internal/models"
)

type OrganizationRepository interface {
	List() ([]models.Organization, error)
	Get(orgID int) (models.Organization, error)
}

type organizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

const orgColumns = `
	id, name, schema_name, platform_kind,
	source_host, source_port, source_database, source_user, source_password,
	fiscal_year_start_month, is_active, created_at, updated_at`

func (r *organizationRepository) List() ([]models.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM mart.organizations
		ORDER BY id;
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *organizationRepository) Get(orgID int) (models.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM mart.organizations
		WHERE id = $1;
	`
	org, err := scanOrganization(r.db.QueryRow(query, orgID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return org, errors.New("organization not found")
		}
		return org, err
	}
	return org, nil
}

func scanOrganization(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Organization, error) {
	var (
		org      models.Organization
		password []byte
	)
	err := scanner.Scan(
		&org.ID,
		&org.Name,
		&org.SchemaName,
		&org.Platform,
		&org.SourceHost,
		&org.SourcePort,
		&org.SourceDatabase,
		&org.SourceUser,
		&password,
		&org.FiscalYearStartMonth,
		&org.IsActive,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return org, err
	}
	org.SourcePasswordSealed = password
	return org, nil
}
