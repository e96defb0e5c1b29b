package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver for tenant source databases
	"github.com/pkg/errors"
)

// SourceConnector executes read queries against one tenant's Softbase
// Evolution source database. Errors surface as-is; the ETL framework does
// not retry.
type SourceConnector interface {
	QueryRows(ctx context.Context, query string, args ...interface{}) ([]Row, error)
	Close() error
}

// SourceParams is everything needed to reach one tenant's source server.
type SourceParams struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type sqlServerConnector struct {
	db *sql.DB
}

// NewSQLServerConnector opens a connection to a tenant source database. The
// handle is usable immediately; lifetime management beyond one job run is
// the caller's concern.
func NewSQLServerConnector(params SourceParams) (SourceConnector, error) {
	port := params.Port
	if port == 0 {
		port = 1433
	}
	dsn := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(params.Username, params.Password),
		Host:   fmt.Sprintf("%s:%d", params.Host, port),
	}
	query := url.Values{}
	query.Set("database", params.Database)
	query.Set("dial timeout", "15")
	dsn.RawQuery = query.Encode()

	db, err := sql.Open("sqlserver", dsn.String())
	if err != nil {
		return nil, errors.Wrapf(err, "open source connection to %s", params.Host)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &sqlServerConnector{db: db}, nil
}

func (c *sqlServerConnector) QueryRows(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "source query")
	}
	defer rows.Close()
	return collectRows(rows)
}

func (c *sqlServerConnector) Close() error {
	return c.db.Close()
}
