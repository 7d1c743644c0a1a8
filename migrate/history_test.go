package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/dbmigrate/db/types"
	"go.hackfix.me/dbmigrate/models"
	"go.hackfix.me/dbmigrate/schema"
)

func TestHistoryEnsure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	te := newTestEnv(t)
	b := schema.NewBuilder(te.db, schema.NewSQLite(), schema.WithTablePrefix("app_"))
	h := NewHistory(b, "{{%migration}}", 0, te.clock)

	assert.Equal(t, "app_migration", h.Table())

	require.NoError(t, h.Ensure(ctx))
	require.NoError(t, h.Ensure(ctx))
	// A new tracker finds the existing table.
	require.NoError(t, NewHistory(b, "{{%migration}}", 0, te.clock).Ensure(ctx))
	assert.Equal(t, []string{"app_migration"}, te.tables(t))

	limit, ok, err := h.NameLimit(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, DefaultNameLength, limit)

	pk, err := b.TablePrimaryKey(ctx, "{{%migration}}")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, pk)
}

func TestHistoryNameLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ok/configured", func(t *testing.T) {
		t.Parallel()

		te := newTestEnv(t)
		b := schema.NewBuilder(te.db, schema.NewSQLite())
		h := NewHistory(b, "migration", 64, te.clock)

		limit, ok, err := h.NameLimit(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 64, limit)

		require.NoError(t, h.Ensure(ctx))
		size, ok, err := b.ColumnSize(ctx, "migration", "name")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 64, size)
	})

	t.Run("ok/unknown_without_table", func(t *testing.T) {
		t.Parallel()

		te := newTestEnv(t)
		h := NewHistory(schema.NewBuilder(te.db, schema.NewSQLite()), "migration", 0, te.clock)

		_, ok, err := h.NameLimit(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestHistoryRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	te := newTestEnv(t)
	b := schema.NewBuilder(te.db, schema.NewSQLite())

	var now time.Time
	ts := models.TimeSourceFunc(func() time.Time { return now })
	h := NewHistory(b, "migration", 0, ts)

	recs, err := h.Applied(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	now = timeStart
	require.NoError(t, h.RecordApplied(ctx, "m240101_120000_a"))
	now = timeStart.Add(time.Minute)
	// Same apply time, ordered by embedded timestamp, then name.
	require.NoError(t, h.RecordApplied(ctx, `ns\M240101130000B`))
	require.NoError(t, h.RecordApplied(ctx, "m240101_140000_c"))
	require.NoError(t, h.RecordApplied(ctx, "m240101_140000_d"))
	require.NoError(t, h.RecordApplied(ctx, "m240101_110000_e"))

	recs, err = h.Applied(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"m240101_140000_d",
		"m240101_140000_c",
		`ns\M240101130000B`,
		"m240101_110000_e",
		"m240101_120000_a",
	}, recordNamesOf(recs))
	assert.Equal(t, timeStart.Add(time.Minute), recs[0].ApplyTime)
	assert.Equal(t, timeStart, recs[4].ApplyTime)

	recs, err = h.Applied(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m240101_140000_d", "m240101_140000_c"}, recordNamesOf(recs))

	err = h.RecordApplied(ctx, "m240101_120000_a")
	var derr *types.DuplicateError
	require.ErrorAs(t, err, &derr)
	assert.EqualError(t, err, "migration with name 'm240101_120000_a' already exists")

	require.NoError(t, h.RecordReverted(ctx, "m240101_140000_d"))
	require.NoError(t, h.RecordReverted(ctx, "m240101_999999_missing"))

	recs, err = h.Applied(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"m240101_140000_c"}, recordNamesOf(recs))
}
