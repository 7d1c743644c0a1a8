package migrate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.hackfix.me/dbmigrate/db/types"
	"go.hackfix.me/dbmigrate/xtime"
)

// BaseVersion is the version before any migration was applied.
const BaseVersion = "base"

type targetKind int

const (
	targetVersion targetKind = iota
	targetTime
	targetBase
)

// Target is a point in the migration history to migrate or mark to.
type Target struct {
	kind    targetKind
	raw     string
	version string
	time    time.Time
}

var (
	plainVersionRx  = regexp.MustCompile(`^m?(\d{6})_?(\d{6})(\D.*)?$`)
	nsVersionRx     = regexp.MustCompile(`^(?:[\w\\]+\\)?M(\d{12})(\D.*)?$`)
	dateTimeLayouts = []string{
		time.RFC3339,
		time.DateTime,
		"2006-01-02 15:04",
		time.DateOnly,
	}
)

// ParseTarget parses a target version. It can be:
//   - a timestamp, e.g. 240101_120000 or 240101120000,
//   - a full migration name, optionally namespaced,
//   - a UNIX timestamp, e.g. 1704110400,
//   - a datetime, e.g. 2024-01-01 12:00:00 (UTC),
//   - a duration before now, e.g. 3d or 1w2d,
//   - "base", the version before any migration.
func ParseTarget(s string, now time.Time) (Target, error) {
	s = strings.TrimSpace(s)
	t := Target{raw: s}

	switch {
	case s == BaseVersion:
		t.kind = targetBase
		return t, nil
	case plainVersionRx.MatchString(s):
		m := plainVersionRx.FindStringSubmatch(s)
		if m[3] != "" && strings.HasPrefix(s, "m") {
			t.version = s
		} else {
			t.version = m[1] + m[2]
		}
		return t, nil
	case nsVersionRx.MatchString(s):
		m := nsVersionRx.FindStringSubmatch(s)
		if m[2] != "" {
			t.version = strings.TrimLeft(s, `\`)
		} else {
			t.version = m[1]
		}
		return t, nil
	}

	t.kind = targetTime
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.time = time.Unix(sec, 0).UTC()
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.time = ts.UTC()
			return t, nil
		}
	}
	if dur, err := xtime.ParseDuration(s); err == nil && dur > 0 && !strings.ContainsAny(s, "-:") {
		t.time = now.Add(-dur).UTC()
		return t, nil
	}

	return Target{}, &types.InvalidInputError{Msg: fmt.Sprintf(
		"The version argument must be either a timestamp (e.g. 240101_120000), "+
			"a full name (e.g. m240101_120000_create_user_table), a UNIX timestamp "+
			"(e.g. 1704110400), a datetime (e.g. 2024-01-01 12:00:00), or a duration "+
			"(e.g. 3d), got '%s'.", s)}
}

// String returns the target as it was given.
func (t Target) String() string {
	return t.raw
}

// IsTime returns true if the target is a point in time rather than a version.
func (t Target) IsTime() bool {
	return t.kind == targetTime
}

func (t Target) matches(name string) bool {
	if t.kind != targetVersion {
		return false
	}
	if len(t.version) == 12 && isDigits(t.version) {
		return Timestamp(name) == t.version
	}
	return name == t.version || BaseName(name) == t.version
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Plan is the list of migrations to apply or revert to reach a target.
type Plan struct {
	Op    Op
	Names []string
	// Current is true if the target is already the latest applied migration.
	Current bool
}

// Empty returns true if nothing needs to be done.
func (p Plan) Empty() bool {
	return len(p.Names) == 0
}

// PlanTo returns the migrations to apply or revert to reach the target. Pending
// migrations up to and including the target are applied, otherwise the
// migrations applied after the target are reverted.
func (m *Migrator) PlanTo(ctx context.Context, t Target) (Plan, error) {
	applied, err := m.history.Applied(ctx, 0)
	if err != nil {
		return Plan{}, err
	}

	switch t.kind {
	case targetBase:
		return Plan{Op: OpRevert, Names: recordNames(applied), Current: len(applied) == 0}, nil
	case targetTime:
		var names []string
		for _, rec := range applied {
			if !rec.ApplyTime.After(t.time) {
				break
			}
			names = append(names, rec.Name)
		}
		return Plan{Op: OpRevert, Names: names}, nil
	}

	pending, err := m.discoverer.Pending(ctx, applied)
	if err != nil {
		return Plan{}, err
	}
	for i, src := range pending {
		if t.matches(src.Name) {
			names := make([]string, 0, i+1)
			for _, p := range pending[:i+1] {
				names = append(names, p.Name)
			}
			return Plan{Op: OpApply, Names: names}, nil
		}
	}

	for i, rec := range applied {
		if t.matches(rec.Name) {
			return Plan{Op: OpRevert, Names: recordNames(applied[:i]), Current: i == 0}, nil
		}
	}

	return Plan{}, &NotFoundError{Name: t.raw, Msg: "unable to find the version"}
}

func recordNames(recs []Record) []string {
	names := make([]string, len(recs))
	for i, rec := range recs {
		names[i] = rec.Name
	}
	return names
}
