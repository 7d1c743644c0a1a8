package cli

import (
	"fmt"

	actx "go.hackfix.me/dbmigrate/app/context"
	"go.hackfix.me/dbmigrate/migrate"
)

// The Mark command sets the migration history to a specific version, without
// running any migrations.
type Mark struct {
	//nolint:lll // Long struct tags are unavoidable.
	Version migrate.Target `arg:"" help:"Timestamp, name, UNIX time, date and time, relative duration (e.g. 3d) or 'base'."`
	Prompt  confirmFlag    `embed:""`
}

// Run the mark command.
func (c *Mark) Run(appCtx *actx.Context) error {
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

	ok, err := c.Prompt.confirm(appCtx, fmt.Sprintf("Set migration history at %s?", c.Version), true)
	if err != nil || !ok {
		return err
	}

	if plan.Op == migrate.OpApply {
		err = m.MarkApplied(appCtx.Ctx, plan.Names)
	} else {
		err = m.MarkReverted(appCtx.Ctx, plan.Names)
	}
	if err != nil {
		return err
	}

	successColor.Fprintf(appCtx.Stdout,
		"The migration history is set at %s.\nNo actual migration was performed.\n", c.Version)

	return nil
}
