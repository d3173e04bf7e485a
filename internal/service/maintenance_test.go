package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsAndReset(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)
	svc := &MaintenanceService{DB: l.DB}

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{}, st)

	mustInsert(t, ctx, l, debit("Current", day(2023, 1, 5), "TESCO", 12, 0))
	mustInsert(t, ctx, l, debit("Savings", day(2023, 1, 5), "TESCO", 12, 0))
	mustRule(t, ctx, l, NewTagRule{Tag: "groceries", DescriptionContains: ptr("tesco")})

	st, err = svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Accounts: 2, Transactions: 2, TagRules: 1, Assignments: 2, UndoSteps: 3}, st)

	require.NoError(t, svc.Reset(ctx))
	st, err = svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{}, st)

	_, err = l.Undo(ctx)
	require.ErrorIs(t, err, ErrNothingToUndo)

	// the ledger keeps working on the emptied store
	mustInsert(t, ctx, l, debit("Current", day(2023, 1, 5), "TESCO", 12, 0))
	requireConsistent(t, ctx, l)
}

func TestResetWithoutDB(t *testing.T) {
	t.Parallel()
	svc := &MaintenanceService{}
	require.Error(t, svc.Reset(t.Context()))
}

func TestTransactionValidation(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	valid := debit("Current", day(2023, 1, 5), "TESCO", 12, 0)
	tests := map[string]func(nt *NewTransaction){
		"missing account":  func(nt *NewTransaction) { nt.Account = " " },
		"missing date":     func(nt *NewTransaction) { nt.PostedDate = time.Time{} },
		"negative debit":   func(nt *NewTransaction) { nt.Debit = -3 },
		"unknown type":     func(nt *NewTransaction) { nt.Type = "Transfer" },
		"missing currency": func(nt *NewTransaction) { nt.Currency = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			nt := valid
			mutate(&nt)
			_, _, err := l.InsertTransaction(ctx, nt)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
	require.Zero(t, undoSteps(t, ctx, l))

	dd := valid
	dd.Type = "direct debit"
	_, created, err := l.InsertTransaction(ctx, dd)
	require.NoError(t, err)
	require.True(t, created)
}
