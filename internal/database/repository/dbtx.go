package repository

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repos can run inside a
// command transaction or directly on the handle for reads.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos bundles every table repo over one DBTX.
type Repos struct {
	Accounts     *AccountRepo
	Transactions *TransactionRepo
	Rules        *TagRuleRepo
	Assignments  *AssignmentRepo
	Undo         *UndoRepo
}

// New builds all repos over db.
func New(db DBTX) Repos {
	return Repos{
		Accounts:     NewAccountRepo(db),
		Transactions: NewTransactionRepo(db),
		Rules:        NewTagRuleRepo(db),
		Assignments:  NewAssignmentRepo(db),
		Undo:         NewUndoRepo(db),
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(DateLayout)
}

func parseDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
