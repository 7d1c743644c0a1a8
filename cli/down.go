package cli

import (
	"errors"
	"fmt"

	actx "go.hackfix.me/dbmigrate/app/context"
	aerrors "go.hackfix.me/dbmigrate/app/errors"
	"go.hackfix.me/dbmigrate/migrate"
)

// The Down command reverts applied migrations.
type Down struct {
	Limit  int         `arg:"" optional:"" default:"1" help:"Number of migrations to revert."`
	All    bool        `help:"Revert all applied migrations."`
	Prompt confirmFlag `embed:""`
}

// Run the down command.
func (c *Down) Run(appCtx *actx.Context) error {
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

	return revertMigrations(appCtx, m, recordNames(applied), c.Prompt)
}

// revertMigrations reverts the named migrations, most recent first, after
// confirmation.
func revertMigrations(appCtx *actx.Context, m *migrate.Migrator, names []string, prompt confirmFlag) error {
	n := len(names)
	infoColor.Fprintf(appCtx.Stdout, "Total %d %s to be reverted:\n", n, migrationWord(n))
	listNames(appCtx.Stdout, names)

	ok, err := prompt.confirm(appCtx, fmt.Sprintf("Revert the above %s?", migrationWord(n)), true)
	if err != nil || !ok {
		return err
	}

	res, err := m.RevertAll(appCtx.Ctx, names)
	if err = reportBatch(appCtx.Stdout, migrate.OpRevert, res, err); err != nil {
		return err
	}

	fmt.Fprintf(appCtx.Stdout, "\n%d %s %s reverted.\n\n", n, migrationWord(n), wasWere(n))
	successColor.Fprintln(appCtx.Stdout, "Migrated down successfully.")

	return nil
}

// historyLimit returns the number of history records to act on, where 0 means
// all of them.
func historyLimit(limit int, all bool) (int, error) {
	if all {
		return 0, nil
	}
	if limit < 1 {
		return 0, aerrors.NewValidation(errors.New("the limit argument must be greater than 0"))
	}
	return limit, nil
}

func recordNames(recs []migrate.Record) []string {
	names := make([]string, len(recs))
	for i, rec := range recs {
		names[i] = rec.Name
	}
	return names
}
