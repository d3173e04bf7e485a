package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/tallybook/internal/database/repository"
)

func TestRuleMatches(t *testing.T) {
	t.Parallel()

	txn := repository.Transaction{
		ID:          7,
		PostedDate:  day(2023, 2, 15),
		Description: "Electricity Company",
		Debit:       50,
		Type:        repository.DirectDebit,
	}
	debitType := repository.Debit
	creditType := repository.Credit

	cases := []struct {
		name string
		rule repository.TagRule
		want bool
	}{
		{"no constraints", repository.TagRule{}, true},
		{"pinned to this transaction", repository.TagRule{TransactionID: ptr(int64(7))}, true},
		{"pinned elsewhere", repository.TagRule{TransactionID: ptr(int64(8))}, false},
		{"debit rule matches direct debit", repository.TagRule{TransactionType: &debitType}, true},
		{"credit rule", repository.TagRule{TransactionType: &creditType}, false},
		{"description case-insensitive", repository.TagRule{DescriptionContains: ptr("ELECTRIC")}, true},
		{"description missing", repository.TagRule{DescriptionContains: ptr("gas")}, false},
		{"empty description constraint", repository.TagRule{DescriptionContains: ptr("")}, true},
		{"min inclusive", repository.TagRule{AmountMin: ptr(50.0)}, true},
		{"min above", repository.TagRule{AmountMin: ptr(50.01)}, false},
		{"max exclusive", repository.TagRule{AmountMax: ptr(50.0)}, false},
		{"max above", repository.TagRule{AmountMax: ptr(50.01)}, true},
		{"from inclusive", repository.TagRule{FromDate: ptr(day(2023, 2, 15))}, true},
		{"from after", repository.TagRule{FromDate: ptr(day(2023, 2, 16))}, false},
		{"to inclusive", repository.TagRule{ToDate: ptr(day(2023, 2, 15))}, true},
		{"to before", repository.TagRule{ToDate: ptr(day(2023, 2, 14))}, false},
		{"all together", repository.TagRule{
			TransactionType:     &debitType,
			DescriptionContains: ptr("company"),
			AmountMin:           ptr(10.0),
			AmountMax:           ptr(100.0),
			FromDate:            ptr(day(2023, 1, 1)),
			ToDate:              ptr(day(2023, 12, 31)),
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, RuleMatches(tc.rule, txn))
		})
	}
}

func TestRuleMatchesEmptyDescription(t *testing.T) {
	t.Parallel()
	blank := repository.Transaction{Description: "", Type: repository.Credit}

	require.True(t, RuleMatches(repository.TagRule{DescriptionContains: ptr("")}, blank))
	require.False(t, RuleMatches(repository.TagRule{DescriptionContains: ptr("x")}, blank))
	require.True(t, RuleMatches(repository.TagRule{}, blank))
}

func TestRuleMatchesUsesLargerAmount(t *testing.T) {
	t.Parallel()
	txn := repository.Transaction{Debit: 5, Credit: 120, Type: repository.Credit}
	require.True(t, RuleMatches(repository.TagRule{AmountMin: ptr(100.0)}, txn))
	require.False(t, RuleMatches(repository.TagRule{AmountMax: ptr(100.0)}, txn))
}
