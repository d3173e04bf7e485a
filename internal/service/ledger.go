package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jask/tallybook/internal/database"
	"github.com/jask/tallybook/internal/database/repository"
)

// Ledger is the command surface over the store. Every mutating method runs
// as one database transaction covering the change, the tag maintenance it
// triggers and its undo step.
type Ledger struct {
	DB      *sql.DB
	Tagger  *Tagger
	History *UndoLog
	Query   *QueryEngine
	Logger  *slog.Logger
}

// NewLedger wires the core services over db.
func NewLedger(db *sql.DB, logger *slog.Logger, maxUndoSteps int) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		DB:      db,
		Tagger:  &Tagger{Logger: logger},
		History: &UndoLog{MaxSteps: maxUndoSteps, Logger: logger},
		Query:   &QueryEngine{},
		Logger:  logger,
	}
}

// command runs fn atomically and records its undo step under name.
func (l *Ledger) command(ctx context.Context, name string, fn func(w *Work) error) error {
	log := l.Logger.With("component", "ledger", "command", name, "run_id", uuid.NewString())
	var step int64
	err := database.WithTx(ctx, l.DB, func(tx *sql.Tx) error {
		w := newWork(tx)
		if err := fn(w); err != nil {
			return err
		}
		var err error
		step, err = l.History.record(ctx, w, name)
		return err
	})
	if err != nil {
		log.Debug("command aborted", "err", err)
		return err
	}
	log.Debug("command committed", "undo_step", step)
	return nil
}

// read runs fn over a consistent snapshot.
func (l *Ledger) read(ctx context.Context, fn func(repos repository.Repos) error) error {
	return database.WithTx(ctx, l.DB, func(tx *sql.Tx) error {
		return fn(repository.New(tx))
	})
}

// NewTransaction is an unvalidated transaction from an import adapter or the
// command line.
type NewTransaction struct {
	Account     string // name or alias; unknown names create the account
	PostedDate  time.Time
	Description string
	Debit       float64
	Credit      float64
	Balance     float64
	Type        string
	Currency    string
}

// ParseTransactionType accepts the stored names case-insensitively, with or
// without the space in "Direct Debit".
func ParseTransactionType(s string) (repository.TransactionType, error) {
	switch strings.ReplaceAll(fold(strings.TrimSpace(s)), " ", "") {
	case "debit":
		return repository.Debit, nil
	case "credit":
		return repository.Credit, nil
	case "directdebit":
		return repository.DirectDebit, nil
	}
	return "", validationf("unknown transaction type %q", s)
}

func validAmount(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return validationf("%s must be a finite number", name)
	}
	if v < 0 {
		return validationf("%s must not be negative, got %v", name, v)
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (nt NewTransaction) validate() (repository.Transaction, error) {
	var t repository.Transaction
	if strings.TrimSpace(nt.Account) == "" {
		return t, validationf("account is required")
	}
	if nt.PostedDate.IsZero() {
		return t, validationf("posted date is required")
	}
	if err := validAmount("debit amount", nt.Debit); err != nil {
		return t, err
	}
	if err := validAmount("credit amount", nt.Credit); err != nil {
		return t, err
	}
	if math.IsNaN(nt.Balance) || math.IsInf(nt.Balance, 0) {
		return t, validationf("balance must be a finite number")
	}
	typ, err := ParseTransactionType(nt.Type)
	if err != nil {
		return t, err
	}
	if strings.TrimSpace(nt.Currency) == "" {
		return t, validationf("currency is required")
	}
	return repository.Transaction{
		AccountName: strings.TrimSpace(nt.Account),
		PostedDate:  dateOnly(nt.PostedDate),
		Description: nt.Description,
		Debit:       nt.Debit,
		Credit:      nt.Credit,
		Balance:     nt.Balance,
		Type:        typ,
		Currency:    strings.TrimSpace(nt.Currency),
	}, nil
}

func (l *Ledger) insertTransaction(ctx context.Context, w *Work, nt NewTransaction) (int64, bool, error) {
	t, err := nt.validate()
	if err != nil {
		return 0, false, err
	}
	acct, err := w.repos.Accounts.Resolve(ctx, t.AccountName)
	if err != nil {
		return 0, false, err
	}
	if acct != nil {
		t.AccountName = acct.Name
	} else if err := w.ensureAccount(ctx, t.AccountName); err != nil {
		return 0, false, err
	}
	return l.Tagger.AddTransaction(ctx, w, t)
}

// InsertTransaction stores one transaction and tags it. An identical
// transaction already stored is not an error: its id is returned with
// created=false and no undo step is recorded.
func (l *Ledger) InsertTransaction(ctx context.Context, nt NewTransaction) (id int64, created bool, err error) {
	err = l.command(ctx, "insert-transaction", func(w *Work) error {
		id, created, err = l.insertTransaction(ctx, w, nt)
		return err
	})
	return id, created, err
}

// ImportResult counts the outcome of ImportTransactions.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportTransactions inserts a batch as one undoable "import" command.
// Duplicates are skipped; an invalid row aborts the whole batch.
func (l *Ledger) ImportTransactions(ctx context.Context, batch []NewTransaction) (ImportResult, error) {
	var res ImportResult
	err := l.command(ctx, "import", func(w *Work) error {
		res = ImportResult{}
		for i, nt := range batch {
			_, created, err := l.insertTransaction(ctx, w, nt)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			if created {
				res.Imported++
			} else {
				res.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	l.Logger.Info("import complete", "component", "ledger", "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

// TouchTransaction re-tags a stored transaction against the current rules.
func (l *Ledger) TouchTransaction(ctx context.Context, id int64) error {
	return l.command(ctx, "touch-transaction", func(w *Work) error {
		return l.Tagger.Touch(ctx, w, id)
	})
}

// NewTagRule is an unvalidated rule. Nil fields leave the constraint unset.
type NewTagRule struct {
	Tag                 string
	HumanReadable       string
	TransactionID       *int64
	DescriptionContains *string
	TransactionType     *string
	AmountMin           *float64
	AmountMax           *float64
	FromDate            *time.Time
	ToDate              *time.Time
}

// AddTagRuleResult reports the new rule id and how many transactions it tagged.
type AddTagRuleResult struct {
	ID     int64
	Tagged int
}

func (nr NewTagRule) validate() (repository.TagRule, error) {
	r := repository.TagRule{
		Tag:                 strings.TrimSpace(nr.Tag),
		HumanReadable:       strings.TrimSpace(nr.HumanReadable),
		TransactionID:       nr.TransactionID,
		DescriptionContains: nr.DescriptionContains,
		AmountMin:           nr.AmountMin,
		AmountMax:           nr.AmountMax,
	}
	if r.Tag == "" {
		return r, validationf("tag is required")
	}
	if nr.TransactionType != nil {
		typ, err := ParseTransactionType(*nr.TransactionType)
		if err != nil {
			return r, err
		}
		if typ == repository.DirectDebit {
			return r, validationf("rule transaction type must be Debit or Credit")
		}
		r.TransactionType = &typ
	}
	if r.AmountMin != nil {
		if err := validAmount("amount min", *r.AmountMin); err != nil {
			return r, err
		}
	}
	if r.AmountMax != nil {
		if err := validAmount("amount max", *r.AmountMax); err != nil {
			return r, err
		}
	}
	if r.AmountMin != nil && r.AmountMax != nil && *r.AmountMin > *r.AmountMax {
		return r, validationf("amount min %v is greater than amount max %v", *r.AmountMin, *r.AmountMax)
	}
	if nr.FromDate != nil {
		d := dateOnly(*nr.FromDate)
		r.FromDate = &d
	}
	if nr.ToDate != nil {
		d := dateOnly(*nr.ToDate)
		r.ToDate = &d
	}
	if r.FromDate != nil && r.ToDate != nil && r.FromDate.After(*r.ToDate) {
		return r, validationf("from date %s is after to date %s", r.FromDate.Format(repository.DateLayout), r.ToDate.Format(repository.DateLayout))
	}
	if r.HumanReadable == "" {
		r.HumanReadable = describeRule(r)
	}
	return r, nil
}

// describeRule renders a rule as a sentence for listings.
func describeRule(r repository.TagRule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Apply tag '%s' to ", r.Tag)
	if r.TransactionID != nil {
		fmt.Fprintf(&b, "transaction %d", *r.TransactionID)
	} else {
		b.WriteString("any transactions")
	}
	var conds []string
	if r.DescriptionContains != nil {
		conds = append(conds, fmt.Sprintf("the description contains '%s'", *r.DescriptionContains))
	}
	if r.TransactionType != nil {
		conds = append(conds, fmt.Sprintf("the type is '%s'", *r.TransactionType))
	}
	if r.AmountMin != nil {
		conds = append(conds, fmt.Sprintf("the amount is at least %v", *r.AmountMin))
	}
	if r.AmountMax != nil {
		conds = append(conds, fmt.Sprintf("the amount is less than %v", *r.AmountMax))
	}
	if r.FromDate != nil {
		conds = append(conds, "the date is on or after "+r.FromDate.Format(repository.DateLayout))
	}
	if r.ToDate != nil {
		conds = append(conds, "the date is on or before "+r.ToDate.Format(repository.DateLayout))
	}
	if len(conds) > 0 {
		if r.TransactionID != nil {
			b.WriteString(" if ")
		} else {
			b.WriteString(" where ")
		}
		b.WriteString(strings.Join(conds, ", and "))
	}
	return b.String()
}

// AddTagRule validates and stores a rule, tagging every transaction it
// matches. An identical rule yields ErrConflict.
func (l *Ledger) AddTagRule(ctx context.Context, nr NewTagRule) (AddTagRuleResult, error) {
	rule, err := nr.validate()
	if err != nil {
		return AddTagRuleResult{}, err
	}
	var res AddTagRuleResult
	err = l.command(ctx, "add-tag-rule", func(w *Work) error {
		if rule.TransactionID != nil {
			t, err := w.repos.Transactions.Get(ctx, *rule.TransactionID)
			if err != nil {
				return err
			}
			if t == nil {
				return validationf("unknown transaction %d", *rule.TransactionID)
			}
		}
		id, tagged, err := l.Tagger.AddRule(ctx, w, rule)
		if err != nil {
			return err
		}
		res = AddTagRuleResult{ID: id, Tagged: tagged}
		return nil
	})
	return res, err
}

// DeleteTagRule removes a rule. An unknown id yields ErrNotFound.
func (l *Ledger) DeleteTagRule(ctx context.Context, id int64) error {
	return l.command(ctx, "delete-tag-rule", func(w *Work) error {
		return l.Tagger.DeleteRule(ctx, w, id)
	})
}

// ListTagRules returns rules whose tag starts with prefix (case-insensitive),
// ordered by id. An empty prefix lists every rule.
func (l *Ledger) ListTagRules(ctx context.Context, prefix string) ([]repository.TagRule, error) {
	rules, err := repository.NewTagRuleRepo(l.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	out := rules[:0]
	for _, r := range rules {
		if hasPrefixFold(r.Tag, prefix) {
			out = append(out, r)
		}
	}
	return out, nil
}

// VerifyTags reports drift between stored and derived tag assignments.
func (l *Ledger) VerifyTags(ctx context.Context) (Drift, error) {
	var d Drift
	err := l.read(ctx, func(repos repository.Repos) error {
		var err error
		d, err = l.Tagger.Verify(ctx, repos)
		return err
	})
	return d, err
}

// RebuildTags repairs any drift as one undoable command.
func (l *Ledger) RebuildTags(ctx context.Context) (Drift, error) {
	var d Drift
	err := l.command(ctx, "rebuild-tags", func(w *Work) error {
		var err error
		d, err = l.Tagger.Rebuild(ctx, w)
		return err
	})
	return d, err
}

// Undo reverts the newest command and returns its name. An empty history
// yields ErrNothingToUndo; an inverse that no longer applies yields
// ErrIntegrity and keeps the step.
func (l *Ledger) Undo(ctx context.Context) (string, error) {
	var name string
	err := database.WithTx(ctx, l.DB, func(tx *sql.Tx) error {
		var err error
		name, err = l.History.pop(ctx, repository.New(tx))
		return err
	})
	return name, err
}

// LastUndoStep returns the step Undo would revert, or nil.
func (l *Ledger) LastUndoStep(ctx context.Context) (*repository.UndoStep, error) {
	return l.History.Peek(ctx, repository.New(l.DB))
}
