package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/tallybook/internal/database/repository"
)

// QueryKind selects the shape of a query result.
type QueryKind string

const (
	ByMonth QueryKind = "by-month"
	ByTag   QueryKind = "by-tag"
	Debits  QueryKind = "debits"
	Credits QueryKind = "credits"
)

// ParseQueryKind accepts the kind names case-insensitively.
func ParseQueryKind(s string) (QueryKind, error) {
	k := QueryKind(fold(strings.TrimSpace(s)))
	switch k {
	case ByMonth, ByTag, Debits, Credits:
		return k, nil
	}
	return "", validationf("unknown query kind %q", s)
}

// FilterSpec narrows a query. Every set field must hold.
type FilterSpec struct {
	Period              Period
	Tags                []string // any of these tag prefixes
	NotTags             []string // none of these tag prefixes
	DescriptionContains *string
	AmountMin           *float64 // inclusive
	AmountMax           *float64 // exclusive
	Account             *string  // name or alias
	TransactionID       *int64
	Types               []repository.TransactionType
}

// ByMonthRow aggregates one account's month. Month is the month's last day.
type ByMonthRow struct {
	Account          string
	Month            time.Time
	Credit           float64
	Debit            float64
	Net              float64
	Balance          float64
	CreditPct        float64
	DebitPct         float64
	CumulativeCredit float64
	CumulativeDebit  float64
}

// ByTagRow aggregates one tag. Tag is "" for untagged transactions.
type ByTagRow struct {
	Tag       string
	Debit     float64
	DebitPct  float64
	Credit    float64
	CreditPct float64
}

// DetailRow is one transaction of a debits or credits listing.
type DetailRow struct {
	ID            int64
	Date          time.Time
	Account       string
	Description   string
	Amount        float64
	Tags          []string
	Pct           float64
	Cumulative    float64
	CumulativePct float64
}

// QueryResult holds the rows of whichever kind ran.
type QueryResult struct {
	Kind    QueryKind
	ByMonth []ByMonthRow
	ByTag   []ByTagRow
	Details []DetailRow
}

// QueryEngine answers aggregate and detail queries over a consistent read.
type QueryEngine struct {
	Logger *slog.Logger
}

// candidate is one filtered transaction. labels are the tags that survived
// the tag filters, or {""} for an untagged transaction.
type candidate struct {
	txn     repository.Transaction
	account string
	tags    []string
	labels  []string
}

func (f FilterSpec) validate() error {
	if f.AmountMin != nil && f.AmountMax != nil && *f.AmountMin > *f.AmountMax {
		return validationf("amount min %v is greater than amount max %v", *f.AmountMin, *f.AmountMax)
	}
	if f.Period.From != nil && f.Period.To != nil && f.Period.From.After(*f.Period.To) {
		return validationf("period %s ends before it starts", f.Period)
	}
	for _, t := range f.Types {
		if !t.Valid() {
			return validationf("unknown transaction type %q", t)
		}
	}
	return nil
}

func cleanPrefixes(in []string) []string {
	var out []string
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func anyPrefix(tag string, prefixes []string) bool {
	return slices.ContainsFunc(prefixes, func(p string) bool { return hasPrefixFold(tag, p) })
}

// collect applies f and returns the unique matching transactions by id.
func (q *QueryEngine) collect(ctx context.Context, repos repository.Repos, f FilterSpec) ([]candidate, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	filters := repository.TransactionFilters{
		ID:        f.TransactionID,
		From:      f.Period.From,
		To:        f.Period.To,
		AmountMin: f.AmountMin,
		AmountMax: f.AmountMax,
	}
	for _, t := range f.Types {
		filters.Types = append(filters.Types, t)
		if t == repository.Debit && !slices.Contains(f.Types, repository.DirectDebit) {
			filters.Types = append(filters.Types, repository.DirectDebit)
		}
	}

	accounts, err := repos.Accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	display := make(map[string]string, len(accounts))
	for _, a := range accounts {
		display[a.Name] = a.DisplayName()
		if a.Selected && f.Account == nil {
			filters.Accounts = append(filters.Accounts, a.Name)
		}
	}
	if f.Account != nil {
		acct, err := resolveAccount(ctx, repos, *f.Account)
		if err != nil {
			return nil, err
		}
		filters.Accounts = []string{acct.Name}
	}

	txns, err := repos.Transactions.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	tagMap, err := repos.Assignments.TagsByTransaction(ctx)
	if err != nil {
		return nil, err
	}

	want := cleanPrefixes(f.Tags)
	exclude := cleanPrefixes(f.NotTags)
	out := make([]candidate, 0, len(txns))
	for _, t := range txns {
		if f.DescriptionContains != nil && !containsFold(t.Description, *f.DescriptionContains) {
			continue
		}
		tags := tagMap[t.ID]
		if slices.ContainsFunc(tags, func(tag string) bool { return anyPrefix(tag, exclude) }) {
			continue
		}
		labels := tags
		if len(labels) == 0 {
			labels = []string{""}
		}
		if len(want) > 0 {
			var kept []string
			for _, tag := range labels {
				if tag != "" && anyPrefix(tag, want) {
					kept = append(kept, tag)
				}
			}
			if len(kept) == 0 {
				continue
			}
			labels = kept
		}
		out = append(out, candidate{txn: t, account: display[t.AccountName], tags: tags, labels: labels})
	}
	q.logger().Debug("query filtered", "component", "query", "scanned", len(txns), "matched", len(out))
	return out, nil
}

func (q *QueryEngine) logger() *slog.Logger {
	if q.Logger == nil {
		return slog.Default()
	}
	return q.Logger
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// percent is part/total*100, or 0 when total is zero.
func percent(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return toFloat(part.Div(total).Mul(decimal.NewFromInt(100)))
}

// ByMonth groups by display account and month, newest month first. The
// cumulative columns run from the oldest row up.
func (q *QueryEngine) ByMonth(ctx context.Context, repos repository.Repos, f FilterSpec) ([]ByMonthRow, error) {
	cands, err := q.collect(ctx, repos, f)
	if err != nil {
		return nil, err
	}
	type key struct {
		account string
		month   time.Time
	}
	type group struct {
		credit, debit decimal.Decimal
		balance       float64
		lastID        int64
	}
	groups := make(map[key]*group)
	var keys []key
	var totalCredit, totalDebit decimal.Decimal
	for _, c := range cands {
		k := key{account: c.account, month: monthEnd(c.txn.PostedDate)}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.credit = g.credit.Add(dec(c.txn.Credit))
		g.debit = g.debit.Add(dec(c.txn.Debit))
		if c.txn.ID >= g.lastID {
			g.lastID, g.balance = c.txn.ID, c.txn.Balance
		}
		totalCredit = totalCredit.Add(dec(c.txn.Credit))
		totalDebit = totalDebit.Add(dec(c.txn.Debit))
	}
	slices.SortFunc(keys, func(a, b key) int {
		if c := b.month.Compare(a.month); c != 0 {
			return c
		}
		return strings.Compare(a.account, b.account)
	})

	rows := make([]ByMonthRow, len(keys))
	var runCredit, runDebit decimal.Decimal
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		g := groups[k]
		runCredit = runCredit.Add(g.credit)
		runDebit = runDebit.Add(g.debit)
		rows[i] = ByMonthRow{
			Account:          k.account,
			Month:            k.month,
			Credit:           toFloat(g.credit),
			Debit:            toFloat(g.debit),
			Net:              toFloat(g.credit.Sub(g.debit)),
			Balance:          g.balance,
			CreditPct:        percent(g.credit, totalCredit),
			DebitPct:         percent(g.debit, totalDebit),
			CumulativeCredit: toFloat(runCredit),
			CumulativeDebit:  toFloat(runDebit),
		}
	}
	return rows, nil
}

// ByTag sums per tag. A transaction with several tags counts once under
// each of them.
func (q *QueryEngine) ByTag(ctx context.Context, repos repository.Repos, f FilterSpec) ([]ByTagRow, error) {
	cands, err := q.collect(ctx, repos, f)
	if err != nil {
		return nil, err
	}
	type sums struct{ debit, credit decimal.Decimal }
	byTag := make(map[string]*sums)
	var totalDebit, totalCredit decimal.Decimal
	for _, c := range cands {
		for _, tag := range c.labels {
			s, ok := byTag[tag]
			if !ok {
				s = &sums{}
				byTag[tag] = s
			}
			s.debit = s.debit.Add(dec(c.txn.Debit))
			s.credit = s.credit.Add(dec(c.txn.Credit))
			totalDebit = totalDebit.Add(dec(c.txn.Debit))
			totalCredit = totalCredit.Add(dec(c.txn.Credit))
		}
	}

	rows := make([]ByTagRow, 0, len(byTag))
	for tag, s := range byTag {
		rows = append(rows, ByTagRow{
			Tag:       tag,
			Debit:     toFloat(s.debit),
			DebitPct:  percent(s.debit, totalDebit),
			Credit:    toFloat(s.credit),
			CreditPct: percent(s.credit, totalCredit),
		})
	}
	slices.SortFunc(rows, func(a, b ByTagRow) int {
		if c := cmp.Compare(b.Debit, a.Debit); c != 0 {
			return c
		}
		return strings.Compare(a.Tag, b.Tag)
	})
	return rows, nil
}

// Details lists debits or credits largest first with Pareto columns.
func (q *QueryEngine) Details(ctx context.Context, repos repository.Repos, kind QueryKind, f FilterSpec) ([]DetailRow, error) {
	if kind != Debits && kind != Credits {
		return nil, validationf("%q is not a detail query", kind)
	}
	cands, err := q.collect(ctx, repos, f)
	if err != nil {
		return nil, err
	}
	rows := make([]DetailRow, 0, len(cands))
	var total decimal.Decimal
	for _, c := range cands {
		amount := c.txn.Debit
		if kind == Credits {
			amount = c.txn.Credit
		}
		if amount == 0 {
			continue
		}
		tags := slices.Clone(c.tags)
		if tags == nil {
			tags = []string{}
		}
		rows = append(rows, DetailRow{
			ID:          c.txn.ID,
			Date:        c.txn.PostedDate,
			Account:     c.account,
			Description: c.txn.Description,
			Amount:      amount,
			Tags:        tags,
		})
		total = total.Add(dec(amount))
	}
	slices.SortFunc(rows, func(a, b DetailRow) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	var running decimal.Decimal
	for i := range rows {
		amount := dec(rows[i].Amount)
		running = running.Add(amount)
		rows[i].Pct = percent(amount, total)
		rows[i].Cumulative = toFloat(running)
		rows[i].CumulativePct = percent(running, total)
	}
	return rows, nil
}

// Run dispatches on kind.
func (q *QueryEngine) Run(ctx context.Context, repos repository.Repos, kind QueryKind, f FilterSpec) (QueryResult, error) {
	res := QueryResult{Kind: kind}
	var err error
	switch kind {
	case ByMonth:
		res.ByMonth, err = q.ByMonth(ctx, repos, f)
	case ByTag:
		res.ByTag, err = q.ByTag(ctx, repos, f)
	case Debits, Credits:
		res.Details, err = q.Details(ctx, repos, kind, f)
	default:
		err = fmt.Errorf("%w: unknown query kind %q", ErrValidation, kind)
	}
	return res, err
}

// RunQuery answers a query over a consistent snapshot.
func (l *Ledger) RunQuery(ctx context.Context, kind QueryKind, f FilterSpec) (QueryResult, error) {
	var res QueryResult
	err := l.read(ctx, func(repos repository.Repos) error {
		var err error
		res, err = l.Query.Run(ctx, repos, kind, f)
		return err
	})
	return res, err
}
