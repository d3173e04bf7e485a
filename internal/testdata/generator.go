// Package testdata generates deterministic ledgers for tests and demos.
package testdata

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jask/tallybook/internal/service"
)

var descriptions = []string{
	"ELECTRICITY COMPANY",
	"TESCO STORES 2231",
	"SPOTIFY",
	"SALARY ACME LTD",
	"COUNCIL TAX",
	"AEGEAN AIRLINES ATHENS",
	"PRET A MANGER",
	"",
}

var accounts = []string{"Current", "Savings", "Credit Card"}

// Transactions returns n transactions drawn from a fixed vocabulary. The
// same seed always yields the same slice.
func Transactions(seed int64, n int) []service.NewTransaction {
	r := rand.New(rand.NewSource(seed))
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]service.NewTransaction, 0, n)
	balance := 1000.0
	for i := 0; i < n; i++ {
		nt := service.NewTransaction{
			Account:     accounts[r.Intn(len(accounts))],
			PostedDate:  start.AddDate(0, 0, r.Intn(365)),
			Description: descriptions[r.Intn(len(descriptions))],
			Currency:    "GBP",
		}
		amount := float64(r.Intn(20000)+1) / 100
		switch r.Intn(4) {
		case 0:
			nt.Credit, nt.Type = amount, "Credit"
			balance += amount
		case 1:
			nt.Debit, nt.Type = amount, "Direct Debit"
			balance -= amount
		default:
			nt.Debit, nt.Type = amount, "Debit"
			balance -= amount
		}
		nt.Balance = balance
		out = append(out, nt)
	}
	return out
}

// Rules returns a mix of general rules over the Transactions vocabulary.
func Rules() []service.NewTagRule {
	str := func(s string) *string { return &s }
	f := func(v float64) *float64 { return &v }
	day := func(m time.Month, d int) *time.Time {
		t := time.Date(2023, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	return []service.NewTagRule{
		{Tag: "bills/electricity", DescriptionContains: str("electric")},
		{Tag: "bills/council", DescriptionContains: str("COUNCIL"), TransactionType: str("Debit")},
		{Tag: "food/groceries", DescriptionContains: str("tesco")},
		{Tag: "food/lunch", DescriptionContains: str("pret"), AmountMax: f(20)},
		{Tag: "travel/athens", DescriptionContains: str("athens"), FromDate: day(time.March, 1), ToDate: day(time.September, 30)},
		{Tag: "income", TransactionType: str("Credit"), AmountMin: f(50)},
		{Tag: "big", AmountMin: f(150)},
		{Tag: "subscriptions", DescriptionContains: str("spotify")},
	}
}

// Describe is a short label for a generated transaction, for test failures.
func Describe(nt service.NewTransaction) string {
	return fmt.Sprintf("%s %s %q d=%.2f c=%.2f", nt.Account, nt.PostedDate.Format("2006-01-02"), nt.Description, nt.Debit, nt.Credit)
}
