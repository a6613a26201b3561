package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_StepsUpAndDown(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	set, err := parseMigrations(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	total := int64(len(set))
	require.GreaterOrEqual(t, total, int64(3))

	require.NoError(t, store.MigrateDown(ctx, len(set)+10), "reset")

	assertStatus := func(step string, want int64) {
		t.Helper()
		version, count, err := store.MigrationStatus(ctx)
		require.NoError(t, err, step)
		assert.Equal(t, want, version, step)
		assert.Equal(t, int(want), count, step)
	}
	assertStatus("after reset", 0)

	steps := []struct {
		name string
		run  func() error
		want int64
	}{
		{"up one", func() error { return store.MigrateUp(ctx, 1) }, 1},
		{"up rest", func() error { return store.MigrateUp(ctx, 0) }, total},
		{"up again is no-op", func() error { return store.MigrateUp(ctx, 0) }, total},
		{"down two", func() error { return store.MigrateDown(ctx, 2) }, total - 2},
		{"down default is one", func() error { return store.MigrateDown(ctx, 0) }, total - 3},
		{"down everything", func() error { return store.MigrateDown(ctx, len(set)) }, 0},
		{"down on empty is no-op", func() error { return store.MigrateDown(ctx, 1) }, 0},
		{"up all", func() error { return store.MigrateUp(ctx, 0) }, total},
	}
	for _, step := range steps {
		require.NoError(t, step.run(), step.name)
		assertStatus(step.name, step.want)
	}
}

func TestMigrator_DetectsDrift(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	set, err := parseMigrations(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	_, err = store.DB().ExecContext(ctx, `UPDATE schema_migrations SET checksum = 'edited' WHERE version = $1`, set[0].Version)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = store.DB().ExecContext(context.Background(),
			`UPDATE schema_migrations SET checksum = $1 WHERE version = $2`, set[0].Checksum, set[0].Version)
	})

	require.ErrorIs(t, store.MigrateUp(ctx, 0), ErrMigrationDrift)

	// пустой checksum остаётся от старой схемы и не считается расхождением
	_, err = store.DB().ExecContext(ctx, `UPDATE schema_migrations SET checksum = '' WHERE version = $1`, set[0].Version)
	require.NoError(t, err)
	require.NoError(t, store.MigrateUp(ctx, 0))
}
