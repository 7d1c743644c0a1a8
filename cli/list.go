package cli

import (
	"cmp"
	"slices"
	"time"

	actx "go.hackfix.me/dbmigrate/app/context"
	aerrors "go.hackfix.me/dbmigrate/app/errors"
	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/xtime"
)

// The List command shows all known migrations and their status.
type List struct{}

// Run the list command.
func (c *List) Run(appCtx *actx.Context) error {
	m, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	sources, err := m.Discoverer().Discover(appCtx.Ctx)
	if err != nil {
		return err
	}
	applied, err := m.Applied(appCtx.Ctx, 0)
	if err != nil {
		return err
	}

	appliedAt := make(map[string]time.Time, len(applied))
	for _, rec := range applied {
		appliedAt[rec.Name] = rec.ApplyTime
	}

	now := appCtx.TimeSource.Now()
	age := func(t time.Time) string {
		return xtime.FormatDuration(now.Sub(t), time.Second) + " ago"
	}

	rows := make([]listRow, 0, len(sources))
	for _, src := range sources {
		status, applyAge := string(migrate.StatePending), ""
		if t, ok := appliedAt[src.Name]; ok {
			status, applyAge = string(migrate.StateApplied), age(t)
			delete(appliedAt, src.Name)
		}
		rows = append(rows, listRow{Name: src.Name, Format: string(src.Format), Status: status, Applied: applyAge})
	}

	// Applied migrations whose source can no longer be found.
	missing := make([]migrate.Record, 0, len(appliedAt))
	for name, t := range appliedAt {
		missing = append(missing, migrate.Record{Name: name, ApplyTime: t})
	}
	slices.SortFunc(missing, func(a, b migrate.Record) int {
		return cmp.Or(
			cmp.Compare(migrate.Canonical(a.Name), migrate.Canonical(b.Name)),
			cmp.Compare(a.Name, b.Name),
		)
	})
	for _, rec := range missing {
		rows = append(rows, listRow{Name: rec.Name, Status: "missing", Applied: age(rec.ApplyTime)})
	}

	if len(rows) == 0 {
		successColor.Fprintln(appCtx.Stdout, "No migrations found.")
		return nil
	}

	if err = renderList(appCtx.Stdout, rows); err != nil {
		return aerrors.NewWithCause("failed rendering migrations table", err)
	}

	return nil
}
