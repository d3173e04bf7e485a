package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jask/tallybook/internal/database/repository"
)

// Tagger keeps the transactions_tags relation equal to the set of matching
// (transaction, rule) pairs, with pinned rules masking general ones. It is
// the only writer of that relation and runs inside the caller's Work.
type Tagger struct {
	Logger *slog.Logger
}

func (tg *Tagger) logger() *slog.Logger {
	if tg.Logger == nil {
		return slog.Default()
	}
	return tg.Logger
}

// Drift is the difference between the stored and the derived relation.
type Drift struct {
	Missing []repository.Assignment
	Extra   []repository.Assignment
}

func (d Drift) Empty() bool { return len(d.Missing) == 0 && len(d.Extra) == 0 }

// desiredRules returns the ids of the rules that should tag t, ascending.
// When any pinned rule matches only pinned rules are kept.
func desiredRules(t repository.Transaction, rules []repository.TagRule) []int64 {
	var pinned, general []int64
	for _, r := range rules {
		if !RuleMatches(r, t) {
			continue
		}
		if r.Pinned() {
			pinned = append(pinned, r.ID)
		} else {
			general = append(general, r.ID)
		}
	}
	if len(pinned) > 0 {
		return pinned
	}
	return general
}

// AddRule stores rule and tags every transaction it matches. A rule with the
// same attribute tuple as a stored one is rejected with ErrConflict before
// anything is written. It returns the new id and the number of transactions
// tagged.
func (tg *Tagger) AddRule(ctx context.Context, w *Work, rule repository.TagRule) (int64, int, error) {
	dup, err := w.repos.Rules.FindDuplicate(ctx, rule)
	if err != nil {
		return 0, 0, err
	}
	if dup != 0 {
		return 0, 0, fmt.Errorf("%w: identical tag rule already exists (id %d)", ErrConflict, dup)
	}
	id, err := w.insertRule(ctx, rule)
	if err != nil {
		return 0, 0, err
	}
	rule.ID = id

	var f repository.TransactionFilters
	f.ID = rule.TransactionID
	txns, err := w.repos.Transactions.List(ctx, f)
	if err != nil {
		return 0, 0, err
	}
	var masked map[int64]bool
	if !rule.Pinned() {
		if masked, err = w.repos.Assignments.PinnedTransactions(ctx); err != nil {
			return 0, 0, err
		}
	}

	tagged := 0
	for _, t := range txns {
		if !RuleMatches(rule, t) || masked[t.ID] {
			continue
		}
		added, err := w.addAssignment(ctx, repository.Assignment{TransactionID: t.ID, TagRuleID: id})
		if err != nil {
			return 0, 0, err
		}
		if added {
			tagged++
		}
		if rule.Pinned() {
			if err := tg.Suppress(ctx, w, t.ID); err != nil {
				return 0, 0, err
			}
		}
	}
	tg.logger().Debug("rule added", "component", "tagger", "rule", id, "tag", rule.Tag, "tagged", tagged)
	return id, tagged, nil
}

// DeleteRule removes a rule and recomputes every transaction it tagged from
// scratch, so general rules masked by a deleted pinned rule come back.
func (tg *Tagger) DeleteRule(ctx context.Context, w *Work, id int64) error {
	rule, err := w.repos.Rules.Get(ctx, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: tag rule %d", ErrNotFound, id)
	}
	affected, err := w.repos.Assignments.ForRule(ctx, id)
	if err != nil {
		return err
	}
	for _, txnID := range affected {
		if _, err := w.removeAssignment(ctx, repository.Assignment{TransactionID: txnID, TagRuleID: id}); err != nil {
			return err
		}
	}
	if err := w.deleteRule(ctx, *rule); err != nil {
		return err
	}

	rules, err := w.repos.Rules.List(ctx)
	if err != nil {
		return err
	}
	for _, txnID := range affected {
		t, err := w.repos.Transactions.Get(ctx, txnID)
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		if err := tg.retag(ctx, w, *t, rules); err != nil {
			return err
		}
	}
	tg.logger().Debug("rule deleted", "component", "tagger", "rule", id, "retagged", len(affected))
	return nil
}

// AddTransaction stores t and tags it. Re-adding an identical transaction
// returns the stored id with created=false and changes nothing.
func (tg *Tagger) AddTransaction(ctx context.Context, w *Work, t repository.Transaction) (int64, bool, error) {
	id, created, err := w.insertTransaction(ctx, t)
	if err != nil || !created {
		return id, created, err
	}
	t.ID = id
	rules, err := w.repos.Rules.List(ctx)
	if err != nil {
		return 0, false, err
	}
	if err := tg.retag(ctx, w, t, rules); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Touch recomputes one transaction's tags from scratch.
func (tg *Tagger) Touch(ctx context.Context, w *Work, id int64) error {
	t, err := w.repos.Transactions.Get(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: transaction %d", ErrNotFound, id)
	}
	rules, err := w.repos.Rules.List(ctx)
	if err != nil {
		return err
	}
	return tg.retag(ctx, w, *t, rules)
}

func (tg *Tagger) retag(ctx context.Context, w *Work, t repository.Transaction, rules []repository.TagRule) error {
	want := desiredRules(t, rules)
	have, err := w.repos.Assignments.ForTransaction(ctx, t.ID)
	if err != nil {
		return err
	}
	for _, ruleID := range have {
		if !slices.Contains(want, ruleID) {
			if _, err := w.removeAssignment(ctx, repository.Assignment{TransactionID: t.ID, TagRuleID: ruleID}); err != nil {
				return err
			}
		}
	}
	for _, ruleID := range want {
		if !slices.Contains(have, ruleID) {
			if _, err := w.addAssignment(ctx, repository.Assignment{TransactionID: t.ID, TagRuleID: ruleID}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Suppress drops general-rule assignments of a transaction that holds a
// pinned-rule assignment. Running it again is a no-op.
func (tg *Tagger) Suppress(ctx context.Context, w *Work, txnID int64) error {
	assigned, err := w.repos.Rules.ListForTransaction(ctx, txnID)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(assigned, repository.TagRule.Pinned) {
		return nil
	}
	for _, r := range assigned {
		if r.Pinned() {
			continue
		}
		if _, err := w.removeAssignment(ctx, repository.Assignment{TransactionID: txnID, TagRuleID: r.ID}); err != nil {
			return err
		}
	}
	return nil
}

// Verify compares the stored relation with the one derived from scratch.
func (tg *Tagger) Verify(ctx context.Context, repos repository.Repos) (Drift, error) {
	txns, err := repos.Transactions.List(ctx, repository.TransactionFilters{})
	if err != nil {
		return Drift{}, err
	}
	rules, err := repos.Rules.List(ctx)
	if err != nil {
		return Drift{}, err
	}
	stored, err := repos.Assignments.List(ctx)
	if err != nil {
		return Drift{}, err
	}

	have := make(map[repository.Assignment]bool, len(stored))
	for _, a := range stored {
		have[a] = true
	}
	var d Drift
	for _, t := range txns {
		for _, ruleID := range desiredRules(t, rules) {
			a := repository.Assignment{TransactionID: t.ID, TagRuleID: ruleID}
			if have[a] {
				delete(have, a)
				continue
			}
			d.Missing = append(d.Missing, a)
		}
	}
	for _, a := range stored {
		if have[a] {
			d.Extra = append(d.Extra, a)
		}
	}
	return d, nil
}

// Rebuild brings the stored relation back in line with the derived one and
// returns what it changed.
func (tg *Tagger) Rebuild(ctx context.Context, w *Work) (Drift, error) {
	d, err := tg.Verify(ctx, w.repos)
	if err != nil {
		return Drift{}, err
	}
	for _, a := range d.Extra {
		if _, err := w.removeAssignment(ctx, a); err != nil {
			return Drift{}, err
		}
	}
	for _, a := range d.Missing {
		if _, err := w.addAssignment(ctx, a); err != nil {
			return Drift{}, err
		}
	}
	if !d.Empty() {
		tg.logger().Warn("tag assignments rebuilt", "component", "tagger", "missing", len(d.Missing), "extra", len(d.Extra))
	}
	return d, nil
}
