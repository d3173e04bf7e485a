package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jask/tallybook/internal/database/repository"
)

// Bootstrap prepares the ledger database at path: it creates the parent
// directory, applies pending migrations once and opens the handle. When the
// schema version advances the undo history is discarded, since recorded
// inverse actions target the previous schema.
func Bootstrap(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	before, after, err := RunMigrations(path)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if after != before {
		logger.Info("schema upgraded", "component", "database", "from", before, "to", after)
		n, err := repository.NewUndoRepo(db).Clear(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clear undo history: %w", err)
		}
		if n > 0 {
			logger.Warn("undo history discarded after schema upgrade", "component", "database", "steps", n)
		}
	}
	return db, nil
}
