package cli

import (
	"reflect"

	"github.com/alecthomas/kong"

	"go.hackfix.me/dbmigrate/migrate"
	"go.hackfix.me/dbmigrate/models"
)

// TargetMapper parses the version to migrate to. Relative durations are
// subtracted from the current time.
type TargetMapper struct {
	timeSource models.TimeSource
}

var _ kong.Mapper = (*TargetMapper)(nil)

// Decode implements the kong.Mapper interface.
func (tm TargetMapper) Decode(kctx *kong.DecodeContext, target reflect.Value) error {
	var value string
	err := kctx.Scan.PopValueInto("version", &value)
	if err != nil {
		return err
	}

	t, err := migrate.ParseTarget(value, tm.timeSource.Now())
	if err != nil {
		return err
	}

	target.Set(reflect.ValueOf(t))

	return nil
}
