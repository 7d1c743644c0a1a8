package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"go.hackfix.me/dbmigrate/db/types"
	"go.hackfix.me/dbmigrate/schema"
)

// DB wraps sql.DB with the dialect of the database engine.
type DB struct {
	*sql.DB
	driver  string
	dialect schema.Dialect
}

var _ types.Querier = (*DB)(nil)

// Open connects to the database. The driver is one of "sqlite", "postgres" or
// "mysql", or one of their aliases.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*DB, error) {
	dialect, err := schema.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	var sqlDB *sql.DB
	switch dialect.Name() {
	case "sqlite":
		sqlDB, err = openSQLite(dsn)
	case "postgres":
		sqlDB, err = openPostgres(dsn)
	case "mysql":
		sqlDB, err = openMySQL(dsn)
	}
	if err != nil {
		return nil, err
	}

	if err = sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed connecting to %s database: %w", dialect.Name(), err)
	}

	logger.Debug("connected to database", "driver", dialect.Name())

	return &DB{DB: sqlDB, driver: dialect.Name(), dialect: dialect}, nil
}

func openSQLite(dsn string) (*sql.DB, error) {
	sqliteDB, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed opening SQLite database: %w", err)
	}

	if strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:") {
		// Every connection to an in-memory database sees a different database,
		// so keep a single one open forever.
		// See https://github.com/mattn/go-sqlite3#faq
		sqliteDB.SetMaxOpenConns(1)
		sqliteDB.SetMaxIdleConns(1)
		sqliteDB.SetConnMaxLifetime(time.Duration(math.Inf(1)))
	}

	return sqliteDB, nil
}

// sqliteDSN enables foreign key enforcement on every connection of the pool,
// unless the DSN already sets it.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func openPostgres(dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed parsing PostgreSQL DSN: %w", err)
	}
	return stdlib.OpenDB(*cfg), nil
}

func openMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed parsing MySQL DSN: %w", err)
	}
	cfg.MultiStatements = true
	cfg.ParseTime = true

	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed opening MySQL database: %w", err)
	}
	return sql.OpenDB(conn), nil
}

// Dialect returns the SQL dialect of the database engine.
func (d *DB) Dialect() schema.Dialect {
	return d.dialect
}

// Driver returns the normalized driver name.
func (d *DB) Driver() string {
	return d.driver
}
