package cli

import (
	"fmt"
	"slices"

	actx "go.hackfix.me/dbmigrate/app/context"
	"go.hackfix.me/dbmigrate/migrate"
)

// The Redo command reverts the most recent migrations, and applies them again.
type Redo struct {
	Limit  int         `arg:"" optional:"" default:"1" help:"Number of migrations to redo."`
	All    bool        `help:"Redo all applied migrations."`
	Prompt confirmFlag `embed:""`
}

// Run the redo command.
func (c *Redo) Run(appCtx *actx.Context) error {
	limit, err := historyLimit(c.Limit, c.All)
	if err != nil {
		return err
	}

	m, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	applied, err := m.Applied(appCtx.Ctx, limit)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		successColor.Fprintln(appCtx.Stdout, "No migration has been done before.")
		return nil
	}

	names := recordNames(applied)
	n := len(names)
	infoColor.Fprintf(appCtx.Stdout, "Total %d %s to be redone:\n", n, migrationWord(n))
	listNames(appCtx.Stdout, names)

	ok, err := c.Prompt.confirm(appCtx, fmt.Sprintf("Redo the above %s?", migrationWord(n)), true)
	if err != nil || !ok {
		return err
	}

	res, err := m.RevertAll(appCtx.Ctx, names)
	if err = reportBatch(appCtx.Stdout, migrate.OpRevert, res, err); err != nil {
		return err
	}

	slices.Reverse(names)
	res, err = m.ApplyAll(appCtx.Ctx, names)
	if err = reportBatch(appCtx.Stdout, migrate.OpApply, res, err); err != nil {
		return err
	}

	fmt.Fprintf(appCtx.Stdout, "\n%d %s %s redone.\n\n", n, migrationWord(n), wasWere(n))
	successColor.Fprintln(appCtx.Stdout, "Migration redone successfully.")

	return nil
}
