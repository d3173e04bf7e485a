package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/tallybook/internal/database"
	"github.com/jask/tallybook/internal/database/repository"
)

// MaintenanceService houses destructive and diagnostic actions.
type MaintenanceService struct {
	DB *sql.DB
}

// Stats counts the rows of each store.
type Stats struct {
	Accounts     int
	Transactions int
	TagRules     int
	Assignments  int
	UndoSteps    int
}

// Stats reports row counts for the info command.
func (s *MaintenanceService) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		counts := []struct {
			table string
			dst   *int
		}{
			{"accounts", &st.Accounts},
			{"transactions", &st.Transactions},
			{"tag_rules", &st.TagRules},
			{"transactions_tags", &st.Assignments},
			{"undo_steps", &st.UndoSteps},
		}
		for _, c := range counts {
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
				return fmt.Errorf("count %s: %w", c.table, err)
			}
		}
		return nil
	})
	return st, err
}

// Reset wipes all user data including the undo history. It keeps the schema
// intact so the app can continue running. Reset cannot be undone.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := repository.NewUndoRepo(tx).Clear(ctx); err != nil {
			return fmt.Errorf("reset undo history: %w", err)
		}
		tables := []string{
			"transactions_tags",
			"tag_rules",
			"transactions",
			"accounts",
		}
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}
