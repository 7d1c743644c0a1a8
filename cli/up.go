package cli

import (
	"errors"
	"fmt"

	actx "go.hackfix.me/dbmigrate/app/context"
	aerrors "go.hackfix.me/dbmigrate/app/errors"
	"go.hackfix.me/dbmigrate/migrate"
)

// The Up command applies new migrations.
type Up struct {
	Limit  int         `arg:"" optional:"" help:"Number of new migrations to apply. All are applied if omitted."`
	Prompt confirmFlag `embed:""`
}

// Run the up command.
func (c *Up) Run(appCtx *actx.Context) error {
	if c.Limit < 0 {
		return aerrors.NewValidation(errors.New("the limit argument must be greater than 0"))
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
	if c.Limit > 0 && c.Limit < total {
		pending = pending[:c.Limit]
	}

	return applyMigrations(appCtx, m, sourceNames(pending), total, c.Prompt)
}

// applyMigrations applies the named migrations after confirmation. total is
// the number of pending migrations, which may be more than len(names).
func applyMigrations(
	appCtx *actx.Context, m *migrate.Migrator, names []string, total int, prompt confirmFlag,
) error {
	if err := checkNameLengths(appCtx, m, names); err != nil {
		return err
	}

	n := len(names)
	if n == total {
		infoColor.Fprintf(appCtx.Stdout, "Total %d new %s to be applied:\n", n, migrationWord(n))
	} else {
		infoColor.Fprintf(appCtx.Stdout, "Total %d out of %d new %s to be applied:\n",
			n, total, migrationWord(total))
	}
	listNames(appCtx.Stdout, names)

	ok, err := prompt.confirm(appCtx, fmt.Sprintf("Apply the above %s?", migrationWord(n)), true)
	if err != nil || !ok {
		return err
	}

	res, err := m.ApplyAll(appCtx.Ctx, names)
	if err = reportBatch(appCtx.Stdout, migrate.OpApply, res, err); err != nil {
		return err
	}

	fmt.Fprintf(appCtx.Stdout, "\n%d %s %s applied.\n\n", n, migrationWord(n), wasWere(n))
	successColor.Fprintln(appCtx.Stdout, "Migrated up successfully.")

	return nil
}

func sourceNames(srcs []migrate.Source) []string {
	names := make([]string, len(srcs))
	for i, src := range srcs {
		names[i] = src.Name
	}
	return names
}
