package cli

import (
	"io"

	actx "go.hackfix.me/dbmigrate/app/context"
	aerrors "go.hackfix.me/dbmigrate/app/errors"
	"go.hackfix.me/dbmigrate/db"
	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/schema"
)

// openDB returns the application database, connecting to it on first use.
func openDB(appCtx *actx.Context) (*db.DB, error) {
	if appCtx.DB != nil {
		return appCtx.DB, nil
	}

	cfg := appCtx.Config
	if !cfg.Database.DSN.Valid || cfg.Database.DSN.V == "" {
		return nil, &migrate.ConfigError{Msg: "database DSN is required"}
	}

	d, err := db.Open(appCtx.Ctx, cfg.Database.Driver.V, cfg.Database.DSN.V, appCtx.Logger)
	if err != nil {
		return nil, aerrors.NewWithCause("failed opening database", err,
			"driver", cfg.Database.Driver.V)
	}
	appCtx.DB = d

	return d, nil
}

// newMigrator creates a Migrator from the application configuration.
func newMigrator(appCtx *actx.Context) (*migrate.Migrator, error) {
	d, err := openDB(appCtx)
	if err != nil {
		return nil, err
	}

	cfg := appCtx.Config
	disc := migrate.NewDiscoverer(appCtx.FS, cfg.Locations(), appCtx.Registry, appCtx.Logger)

	var informer schema.Informer = schema.NewConsoleInformer(appCtx.Stdout)
	if cfg.Compact.V {
		informer = schema.NopInformer{}
	}

	opts := []migrate.Option{
		migrate.WithLogger(appCtx.Logger),
		migrate.WithTimeSource(appCtx.TimeSource),
		migrate.WithObserver(consoleObserver{w: appCtx.Stdout}),
		migrate.WithInformer(informer),
		migrate.WithTablePrefix(cfg.Database.TablePrefix.V),
		migrate.WithHistoryTable(cfg.History.Table.V),
	}
	if cfg.History.MaxNameLength.Valid {
		opts = append(opts, migrate.WithMaxNameLength(cfg.History.MaxNameLength.V))
	}

	//nolint:wrapcheck // Option errors are descriptive enough.
	return migrate.NewMigrator(d.DB, d.Dialect(), disc, opts...)
}

// checkNameLengths returns an error if any of the names doesn't fit in the
// history table.
func checkNameLengths(appCtx *actx.Context, m *migrate.Migrator, names []string) error {
	limit, ok, err := m.History().NameLimit(appCtx.Ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, name := range names {
		if len(name) > limit {
			return &migrate.NameTooLongError{Name: name, Limit: limit}
		}
	}
	return nil
}

// reportBatch prints the outcome of an apply or revert batch.
func reportBatch(w io.Writer, op migrate.Op, res migrate.BatchResult, err error) error {
	if err != nil {
		batchSummary(w, op, res)
		return err
	}
	return nil
}
