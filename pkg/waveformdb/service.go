// Package waveformdb reads waveform batches from PostgreSQL (the clinical data store)
// or from a local SQLite copy with the same layout.
// Both sources are read-only apart from the SQLite import helpers.
package waveformdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/NotCoffee418/waveform_explorer/pkg/config"
	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/lib/pq"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open connects to the database named by cfg.Driver. The returned *sql.DB must be closed by the caller.
func Open(ctx context.Context, cfg config.DatabaseConfig) (waveform.DataSource, *sql.DB, error) {
	switch cfg.Driver {
	case "postgres":
		dsn, err := DSNFromJDBC(cfg.JdbcURL, cfg.Username, cfg.Password)
		if err != nil {
			return nil, nil, err
		}
		db, err := OpenPostgres(ctx, dsn, cfg.Schema)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresSource(db), db, nil
	case "sqlite":
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLiteSource(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenSQLite opens the database file and applies pending migrations.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Creates the file before migrating
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
	return db, nil
}

// OpenPostgres connects with the given DSN. Every new connection has its search_path
// set to schema before it is handed out.
func OpenPostgres(ctx context.Context, dsn, schema string) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	db := sql.OpenDB(&searchPathConnector{Connector: connector, schema: schema})
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

type searchPathConnector struct {
	driver.Connector
	schema string
}

func (c *searchPathConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Connector.Connect(ctx)
	if err != nil || c.schema == "" {
		return conn, err
	}
	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("postgres connection cannot execute statements")
	}
	if _, err := execer.ExecContext(ctx, SearchPathStatement(c.schema), nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set search_path: %w", err)
	}
	return conn, nil
}

// SearchPathStatement quotes the schema as an identifier; it cannot be a bind parameter.
func SearchPathStatement(schema string) string {
	return "SET search_path TO " + pq.QuoteIdentifier(schema)
}

// DSNFromJDBC converts a JDBC url such as jdbc:postgresql://host:5432/db into a
// lib/pq connection url carrying the given credentials.
func DSNFromJDBC(jdbcURL, user, password string) (string, error) {
	u, err := url.Parse(strings.TrimPrefix(jdbcURL, "jdbc:"))
	if err != nil {
		return "", fmt.Errorf("invalid JDBC url: %w", err)
	}
	if u.Scheme != "postgresql" && u.Scheme != "postgres" {
		return "", fmt.Errorf("invalid JDBC url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid JDBC url: missing host")
	}
	switch {
	case user != "" && password != "":
		u.User = url.UserPassword(user, password)
	case user != "":
		u.User = url.User(user)
	}
	return u.String(), nil
}
