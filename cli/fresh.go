package cli

import (
	"fmt"

	actx "go.hackfix.me/dbmigrate/app/context"
)

// The Fresh command drops all tables and applies all migrations from the
// beginning.
type Fresh struct {
	Prompt confirmFlag `embed:""`
}

// Run the fresh command.
func (c *Fresh) Run(appCtx *actx.Context) error {
	m, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	ok, err := c.Prompt.confirm(appCtx,
		"Are you sure you want to drop all tables and related constraints and start "+
			"the migration from the beginning?\nAll data will be lost irreversibly!", false)
	if err != nil {
		return err
	}
	if !ok {
		infoColor.Fprintln(appCtx.Stdout, "Action was cancelled by user. Nothing has been performed.")
		return nil
	}

	dropped, err := m.DropAllTables(appCtx.Ctx)
	if err != nil {
		return err
	}
	appCtx.Logger.Info("dropped all tables", "count", len(dropped))
	fmt.Fprintf(appCtx.Stdout, "Dropped %d %s.\n\n", len(dropped), pluralTables(len(dropped)))

	pending, err := m.Pending(appCtx.Ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		successColor.Fprintln(appCtx.Stdout, "No new migrations found. Your system is up-to-date.")
		return nil
	}

	names := sourceNames(pending)
	// The user already agreed to start over.
	return applyMigrations(appCtx, m, names, len(names), confirmFlag{Yes: true})
}

func pluralTables(n int) string {
	if n == 1 {
		return "table"
	}
	return "tables"
}
