package cli

import (
	actx "go.hackfix.me/dbmigrate/app/context"
	"go.hackfix.me/dbmigrate/migrate"
)

// The To command migrates up or down to a specific version.
type To struct {
	//nolint:lll // Long struct tags are unavoidable.
	Version migrate.Target `arg:"" help:"Timestamp, name, UNIX time, date and time, relative duration (e.g. 3d) or 'base'."`
	Prompt  confirmFlag    `embed:""`
}

// Run the to command.
func (c *To) Run(appCtx *actx.Context) error {
	m, err := newMigrator(appCtx)
	if err != nil {
		return err
	}

	plan, err := m.PlanTo(appCtx.Ctx, c.Version)
	if err != nil {
		return err
	}
	if plan.Empty() {
		successColor.Fprintf(appCtx.Stdout, "Already at '%s'. Nothing needs to be done.\n", c.Version)
		return nil
	}

	if plan.Op == migrate.OpApply {
		return applyMigrations(appCtx, m, plan.Names, len(plan.Names), c.Prompt)
	}

	return revertMigrations(appCtx, m, plan.Names, c.Prompt)
}
