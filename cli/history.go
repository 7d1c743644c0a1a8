package cli

import (
	"fmt"
	"time"

	actx "go.hackfix.me/dbmigrate/app/context"
)

// The History command shows the applied migrations.
type History struct {
	Limit int  `arg:"" optional:"" default:"10" help:"Number of migrations to show."`
	All   bool `help:"Show all applied migrations."`
}

// Run the history command.
func (c *History) Run(appCtx *actx.Context) error {
	limit, err := historyLimit(c.Limit, c.All)
	if err != nil {
		return err
	}

	m, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	recs, err := m.Applied(appCtx.Ctx, limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		successColor.Fprintln(appCtx.Stdout, "No migration has been done before.")
		return nil
	}

	n := len(recs)
	if limit == 0 {
		verb := "have"
		if n == 1 {
			verb = "has"
		}
		infoColor.Fprintf(appCtx.Stdout, "Total %d %s %s been applied before:\n", n, migrationWord(n), verb)
	} else {
		infoColor.Fprintf(appCtx.Stdout, "Showing the last %d applied %s:\n", n, migrationWord(n))
	}
	for _, rec := range recs {
		fmt.Fprintf(appCtx.Stdout, "\t(%s) %s\n", rec.ApplyTime.UTC().Format(time.DateTime), rec.Name)
	}
	fmt.Fprintln(appCtx.Stdout)

	return nil
}
