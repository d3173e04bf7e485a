package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/tallybook/internal/database/repository"
)

func TestByMonthBalanceIsLatestByID(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustInsert(t, ctx, l, credit("Current", day(2023, 2, 20), "SALARY", 100, 100))
	mustInsert(t, ctx, l, debit("Current", day(2023, 2, 3), "TESCO", 20, 80))

	res, err := l.RunQuery(ctx, ByMonth, FilterSpec{})
	require.NoError(t, err)
	require.Len(t, res.ByMonth, 1)
	row := res.ByMonth[0]
	require.Equal(t, "Current", row.Account)
	require.Equal(t, day(2023, 2, 28), row.Month)
	require.Equal(t, 80.0, row.Balance)
	require.Equal(t, 100.0, row.Credit)
	require.Equal(t, 20.0, row.Debit)
	require.Equal(t, 80.0, row.Net)
}

func TestByMonthOrderingAndRunningTotals(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustInsert(t, ctx, l, debit("Current", day(2023, 1, 10), "A", 10, 0))
	mustInsert(t, ctx, l, debit("Current", day(2023, 3, 10), "B", 30, 0))
	mustInsert(t, ctx, l, credit("Savings", day(2023, 3, 11), "C", 40, 0))
	mustInsert(t, ctx, l, debit("Current", day(2023, 2, 10), "D", 20, 0))
	require.NoError(t, l.SetAlias(ctx, "Savings", "sav"))

	res, err := l.RunQuery(ctx, ByMonth, FilterSpec{})
	require.NoError(t, err)
	rows := res.ByMonth
	require.Len(t, rows, 4)

	require.Equal(t, "Current", rows[0].Account)
	require.Equal(t, day(2023, 3, 31), rows[0].Month)
	require.Equal(t, "sav", rows[1].Account)
	require.Equal(t, day(2023, 3, 31), rows[1].Month)
	require.Equal(t, day(2023, 2, 28), rows[2].Month)
	require.Equal(t, day(2023, 1, 31), rows[3].Month)

	require.Equal(t, []float64{60, 30, 30, 10}, []float64{rows[0].CumulativeDebit, rows[1].CumulativeDebit, rows[2].CumulativeDebit, rows[3].CumulativeDebit})
	require.Equal(t, []float64{40, 40, 0, 0}, []float64{rows[0].CumulativeCredit, rows[1].CumulativeCredit, rows[2].CumulativeCredit, rows[3].CumulativeCredit})

	var debitPct, creditPct float64
	for _, r := range rows {
		debitPct += r.DebitPct
		creditPct += r.CreditPct
	}
	require.InDelta(t, 100, debitPct, 1e-9)
	require.InDelta(t, 100, creditPct, 1e-9)
}

func TestByMonthCumulativeRunsFromOldestMonth(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustInsert(t, ctx, l, credit("Current", day(2021, 2, 1), "SALARY", 1000, 1000))
	mustInsert(t, ctx, l, debit("Current", day(2021, 2, 10), "GROCERIES", 72.22, 927.78))
	mustInsert(t, ctx, l, debit("Current", day(2021, 3, 3), "GROCERIES", 67.76, 860.02))

	res, err := l.RunQuery(ctx, ByMonth, FilterSpec{})
	require.NoError(t, err)
	rows := res.ByMonth
	require.Len(t, rows, 2)

	require.Equal(t, day(2021, 3, 31), rows[0].Month)
	require.Equal(t, 1000.0, rows[0].CumulativeCredit)
	require.InDelta(t, 139.98, rows[0].CumulativeDebit, 1e-9)
	require.InDelta(t, 860.02, rows[0].Balance, 1e-9)

	require.Equal(t, day(2021, 2, 28), rows[1].Month)
	require.Equal(t, 1000.0, rows[1].CumulativeCredit)
	require.InDelta(t, 72.22, rows[1].CumulativeDebit, 1e-9)
}

func TestMultiplyTaggedTransactionCountsOnceOutsideByTag(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustRule(t, ctx, l, NewTagRule{Tag: "travel/athens", DescriptionContains: ptr("athens")})
	mustRule(t, ctx, l, NewTagRule{Tag: "travel/flights", DescriptionContains: ptr("airlines")})
	mustRule(t, ctx, l, NewTagRule{Tag: "travel/flights", TransactionType: ptr("Debit")})
	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 1), "AEGEAN AIRLINES ATHENS", 200, 0))
	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 2), "PRET", 5, 0))

	spec := FilterSpec{Tags: []string{"TRAVEL/"}}
	res, err := l.RunQuery(ctx, ByMonth, spec)
	require.NoError(t, err)
	require.Len(t, res.ByMonth, 1)
	require.Equal(t, 205.0, res.ByMonth[0].Debit)

	res, err = l.RunQuery(ctx, Debits, spec)
	require.NoError(t, err)
	require.Len(t, res.Details, 2)
	require.Equal(t, []string{"travel/athens", "travel/flights"}, res.Details[0].Tags)

	res, err = l.RunQuery(ctx, ByTag, spec)
	require.NoError(t, err)
	require.Equal(t, []ByTagRow{
		{Tag: "travel/flights", Debit: 205, DebitPct: percent(dec(205), dec(405))},
		{Tag: "travel/athens", Debit: 200, DebitPct: percent(dec(200), dec(405))},
	}, res.ByTag)
}

func TestByTagUntaggedAndZeroTotals(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	res, err := l.RunQuery(ctx, ByTag, FilterSpec{})
	require.NoError(t, err)
	require.Empty(t, res.ByTag)

	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 1), "MYSTERY", 15, 0))
	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 2), "SPOTIFY", 10, 0))
	mustRule(t, ctx, l, NewTagRule{Tag: "subscriptions", DescriptionContains: ptr("spotify")})

	res, err = l.RunQuery(ctx, ByTag, FilterSpec{})
	require.NoError(t, err)
	require.Equal(t, []ByTagRow{
		{Tag: "", Debit: 15, DebitPct: 60},
		{Tag: "subscriptions", Debit: 10, DebitPct: 40},
	}, res.ByTag)
}

func TestExcludedTags(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustRule(t, ctx, l, NewTagRule{Tag: "travel/athens", DescriptionContains: ptr("athens")})
	mustRule(t, ctx, l, NewTagRule{Tag: "work", DescriptionContains: ptr("hotel")})
	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 1), "ATHENS HOTEL", 100, 0))
	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 2), "LONDON HOTEL", 80, 0))
	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 3), "CORNER SHOP", 3, 0))

	res, err := l.RunQuery(ctx, Debits, FilterSpec{NotTags: []string{"travel"}})
	require.NoError(t, err)
	require.Len(t, res.Details, 2)
	require.Equal(t, "LONDON HOTEL", res.Details[0].Description)
	require.Equal(t, "CORNER SHOP", res.Details[1].Description)
	require.Equal(t, []string{}, res.Details[1].Tags)
}

func TestDebitsPareto(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 1), "A", 30, 0))
	b := mustInsert(t, ctx, l, debit("Current", day(2023, 5, 2), "B", 50, 0))
	mustInsert(t, ctx, l, debit("Current", day(2023, 5, 3), "C", 20, 0))
	mustInsert(t, ctx, l, credit("Current", day(2023, 5, 4), "SALARY", 1000, 0))

	res, err := l.RunQuery(ctx, Debits, FilterSpec{})
	require.NoError(t, err)
	rows := res.Details
	require.Len(t, rows, 3)
	require.Equal(t, b, rows[0].ID)
	require.Equal(t, []float64{50, 30, 20}, []float64{rows[0].Amount, rows[1].Amount, rows[2].Amount})
	require.Equal(t, []float64{50, 80, 100}, []float64{rows[0].Cumulative, rows[1].Cumulative, rows[2].Cumulative})
	require.Equal(t, []float64{50, 80, 100}, []float64{rows[0].CumulativePct, rows[1].CumulativePct, rows[2].CumulativePct})
	require.Equal(t, []float64{50, 30, 20}, []float64{rows[0].Pct, rows[1].Pct, rows[2].Pct})

	res, err = l.RunQuery(ctx, Credits, FilterSpec{})
	require.NoError(t, err)
	require.Len(t, res.Details, 1)
	require.Equal(t, 100.0, res.Details[0].CumulativePct)
}

func TestDetailTiesBreakByID(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	first := mustInsert(t, ctx, l, debit("Current", day(2023, 5, 2), "A", 10, 0))
	second := mustInsert(t, ctx, l, debit("Current", day(2023, 5, 1), "B", 10, 0))

	res, err := l.RunQuery(ctx, Debits, FilterSpec{})
	require.NoError(t, err)
	require.Equal(t, first, res.Details[0].ID)
	require.Equal(t, second, res.Details[1].ID)
}

func TestFilters(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustInsert(t, ctx, l, debit("Current", day(2023, 1, 31), "JAN", 10, 0))
	feb := mustInsert(t, ctx, l, debit("Current", day(2023, 2, 1), "FEB", 100, 0))
	mustInsert(t, ctx, l, NewTransaction{Account: "Current", PostedDate: day(2023, 2, 2), Description: "DD", Debit: 60, Type: "Direct Debit", Currency: "GBP"})
	mustInsert(t, ctx, l, debit("Savings", day(2023, 2, 3), "FEB SAVINGS", 40, 0))

	ids := func(spec FilterSpec) []string {
		res, err := l.RunQuery(ctx, Debits, spec)
		require.NoError(t, err)
		var out []string
		for _, r := range res.Details {
			out = append(out, r.Description)
		}
		return out
	}

	feb23, err := ParsePeriod("2023/02", day(2024, 1, 1))
	require.NoError(t, err)
	require.Equal(t, []string{"FEB", "DD", "FEB SAVINGS"}, ids(FilterSpec{Period: feb23}))
	require.Equal(t, []string{"FEB", "FEB SAVINGS"}, ids(FilterSpec{DescriptionContains: ptr("feb")}))
	require.Equal(t, []string{"DD", "FEB SAVINGS"}, ids(FilterSpec{AmountMin: ptr(40.0), AmountMax: ptr(100.0)}))
	require.Equal(t, []string{"FEB SAVINGS"}, ids(FilterSpec{Account: ptr("Savings")}))
	require.Equal(t, []string{"FEB"}, ids(FilterSpec{TransactionID: &feb}))
	require.Equal(t, []string{"DD"}, ids(FilterSpec{Types: []repository.TransactionType{repository.DirectDebit}}))
	require.Len(t, ids(FilterSpec{Types: []repository.TransactionType{repository.Debit}}), 4)
}

func TestSelectedAccountsScopeQueries(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustInsert(t, ctx, l, debit("Current", day(2023, 2, 1), "A", 10, 0))
	mustInsert(t, ctx, l, debit("Savings", day(2023, 2, 1), "B", 20, 0))
	require.NoError(t, l.SelectAccount(ctx, "Savings"))

	res, err := l.RunQuery(ctx, Debits, FilterSpec{})
	require.NoError(t, err)
	require.Len(t, res.Details, 1)
	require.Equal(t, "B", res.Details[0].Description)

	res, err = l.RunQuery(ctx, Debits, FilterSpec{Account: ptr("Current")})
	require.NoError(t, err)
	require.Len(t, res.Details, 1)
	require.Equal(t, "A", res.Details[0].Description)

	require.NoError(t, l.UnselectAccount(ctx, ""))
	res, err = l.RunQuery(ctx, Debits, FilterSpec{})
	require.NoError(t, err)
	require.Len(t, res.Details, 2)
}

func TestUnknownAccountSuggestsClosest(t *testing.T) {
	t.Parallel()
	l, ctx := newTestLedger(t, 0)

	mustInsert(t, ctx, l, debit("Current", day(2023, 2, 1), "A", 10, 0))
	_, err := l.RunQuery(ctx, ByMonth, FilterSpec{Account: ptr("Curent")})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), `did you mean "Current"`)

	_, err = l.RunQuery(ctx, ByMonth, FilterSpec{Account: ptr("zzzzzzzz")})
	require.ErrorIs(t, err, ErrValidation)
	require.NotContains(t, err.Error(), "did you mean")
}

func TestParseQueryKind(t *testing.T) {
	t.Parallel()
	k, err := ParseQueryKind("By-Tag")
	require.NoError(t, err)
	require.Equal(t, ByTag, k)
	_, err = ParseQueryKind("by-year")
	require.ErrorIs(t, err, ErrValidation)
}
