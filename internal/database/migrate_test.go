package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/tallybook/internal/database/repository"
	"github.com/jask/tallybook/internal/logging"
)

func TestRunMigrationsFreshAndRepeated(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ledger.db")

	before, after, err := RunMigrations(path)
	require.NoError(t, err)
	require.Zero(t, before)
	require.Equal(t, uint(2), after)

	before, after, err = RunMigrations(path)
	require.NoError(t, err)
	require.Equal(t, uint(2), before)
	require.Equal(t, uint(2), after)
}

func TestBootstrapKeepsUndoHistoryOnReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")

	db, err := Bootstrap(ctx, path, logging.Discard())
	require.NoError(t, err)
	_, err = repository.NewUndoRepo(db).InsertStep(ctx, "insert-transaction", Now(), nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Bootstrap(ctx, path, logging.Discard())
	require.NoError(t, err)
	defer db.Close()
	n, err := repository.NewUndoRepo(db).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBootstrapUpgradesOlderSchema(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := Bootstrap(ctx, path, logging.Discard())
	require.NoError(t, err)
	// roll the file back to the first schema version
	for _, stmt := range []string{
		`DROP TABLE undo_actions`,
		`DROP TABLE undo_steps`,
		`UPDATE schema_migrations SET version = 1, dirty = 0`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	db, err = Bootstrap(ctx, path, logging.Discard())
	require.NoError(t, err)
	defer db.Close()
	n, err := repository.NewUndoRepo(db).Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := Bootstrap(ctx, filepath.Join(t.TempDir(), "ledger.db"), logging.Discard())
	require.NoError(t, err)
	defer db.Close()

	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO accounts(name) VALUES('Current')`); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	accounts, err := repository.NewAccountRepo(db).List(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestNowIsUTCSeconds(t *testing.T) {
	t.Parallel()
	n := Now()
	require.Equal(t, time.UTC, n.Location())
	require.Zero(t, n.Nanosecond())
}
