package cli

import (
	actx "go.hackfix.me/dbmigrate/app/context"
)

// The NewMigrations command shows the migrations that haven't been applied.
type NewMigrations struct {
	Limit int  `arg:"" optional:"" default:"10" help:"Number of migrations to show."`
	All   bool `help:"Show all new migrations."`
}

// Run the new command.
func (c *NewMigrations) Run(appCtx *actx.Context) error {
	limit, err := historyLimit(c.Limit, c.All)
	if err != nil {
		return err
	}

	m, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	pending, err := m.Pending(appCtx.Ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		successColor.Fprintln(appCtx.Stdout, "No new migrations found. Your system is up-to-date.")
		return nil
	}

	total := len(pending)
	if limit > 0 && total > limit {
		pending = pending[:limit]
		infoColor.Fprintf(appCtx.Stdout, "Showing %d out of %d new %s:\n", limit, total, migrationWord(total))
	} else {
		infoColor.Fprintf(appCtx.Stdout, "Found %d new %s:\n", total, migrationWord(total))
	}
	listNames(appCtx.Stdout, sourceNames(pending))

	return nil
}
