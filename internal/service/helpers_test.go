package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/tallybook/internal/database"
	"github.com/jask/tallybook/internal/database/repository"
	"github.com/jask/tallybook/internal/logging"
)

func newTestLedger(t *testing.T, maxUndo int) (*Ledger, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Bootstrap(ctx, dbPath, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewLedger(db, logging.Discard(), maxUndo), ctx
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func debit(account string, date time.Time, desc string, amount, balance float64) NewTransaction {
	return NewTransaction{Account: account, PostedDate: date, Description: desc, Debit: amount, Balance: balance, Type: "Debit", Currency: "GBP"}
}

func credit(account string, date time.Time, desc string, amount, balance float64) NewTransaction {
	return NewTransaction{Account: account, PostedDate: date, Description: desc, Credit: amount, Balance: balance, Type: "Credit", Currency: "GBP"}
}

func mustInsert(t *testing.T, ctx context.Context, l *Ledger, nt NewTransaction) int64 {
	t.Helper()
	id, created, err := l.InsertTransaction(ctx, nt)
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func mustRule(t *testing.T, ctx context.Context, l *Ledger, nr NewTagRule) AddTagRuleResult {
	t.Helper()
	res, err := l.AddTagRule(ctx, nr)
	require.NoError(t, err)
	return res
}

// tagsOf returns the distinct tags currently assigned to a transaction.
func tagsOf(t *testing.T, ctx context.Context, l *Ledger, id int64) []string {
	t.Helper()
	m, err := repository.New(l.DB).Assignments.TagsByTransaction(ctx)
	require.NoError(t, err)
	return m[id]
}

func requireConsistent(t *testing.T, ctx context.Context, l *Ledger) {
	t.Helper()
	d, err := l.VerifyTags(ctx)
	require.NoError(t, err)
	require.True(t, d.Empty(), "drift: missing %v extra %v", d.Missing, d.Extra)
}

func undoSteps(t *testing.T, ctx context.Context, l *Ledger) int {
	t.Helper()
	n, err := repository.NewUndoRepo(l.DB).Count(ctx)
	require.NoError(t, err)
	return n
}
