package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jask/tallybook/internal/database/repository"
)

type actionKind string

const (
	actDeleteTransaction actionKind = "delete_transaction"
	actDeleteAccount     actionKind = "delete_account"
	actRestoreAccount    actionKind = "restore_account"
	actDeleteTagRule     actionKind = "delete_tag_rule"
	actRestoreTagRule    actionKind = "restore_tag_rule"
	actAddAssignment     actionKind = "add_assignment"
	actRemoveAssignment  actionKind = "remove_assignment"
)

// inverseAction undoes exactly one row change.
type inverseAction struct {
	Kind          actionKind          `json:"-"`
	TransactionID int64               `json:"transaction_id,omitempty"`
	RuleID        int64               `json:"rule_id,omitempty"`
	AccountName   string              `json:"account_name,omitempty"`
	Account       *repository.Account `json:"account,omitempty"`
	Rule          *repository.TagRule `json:"rule,omitempty"`
}

func (a inverseAction) encode() (repository.UndoAction, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return repository.UndoAction{}, fmt.Errorf("encode %s: %w", a.Kind, err)
	}
	return repository.UndoAction{Kind: string(a.Kind), Payload: b}, nil
}

func decodeAction(ua repository.UndoAction) (inverseAction, error) {
	var a inverseAction
	if err := json.Unmarshal(ua.Payload, &a); err != nil {
		return inverseAction{}, fmt.Errorf("%w: decode action %d: %v", ErrIntegrity, ua.Seq, err)
	}
	a.Kind = actionKind(ua.Kind)
	return a, nil
}

// Work is one command's unit of work: repos bound to the command's database
// transaction plus the inverse of every row it changed, in forward order.
// Every mutation of the ledger goes through a Work.
type Work struct {
	repos   repository.Repos
	inverse []inverseAction
}

func newWork(db repository.DBTX) *Work {
	return &Work{repos: repository.New(db)}
}

// Changed reports whether anything was written.
func (w *Work) Changed() bool { return len(w.inverse) > 0 }

func (w *Work) record(a inverseAction) { w.inverse = append(w.inverse, a) }

func (w *Work) ensureAccount(ctx context.Context, name string) error {
	created, err := w.repos.Accounts.Insert(ctx, repository.Account{Name: name})
	if err != nil {
		return fmt.Errorf("insert account %q: %w", name, err)
	}
	if created {
		w.record(inverseAction{Kind: actDeleteAccount, AccountName: name})
	}
	return nil
}

func (w *Work) updateAccount(ctx context.Context, before, after repository.Account) error {
	n, err := w.repos.Accounts.Update(ctx, after)
	if err != nil {
		return fmt.Errorf("update account %q: %w", after.Name, err)
	}
	if n == 1 {
		w.record(inverseAction{Kind: actRestoreAccount, Account: &before})
	}
	return nil
}

func (w *Work) insertTransaction(ctx context.Context, t repository.Transaction) (int64, bool, error) {
	id, created, err := w.repos.Transactions.Insert(ctx, t)
	if err != nil {
		return 0, false, fmt.Errorf("insert transaction: %w", err)
	}
	if created {
		w.record(inverseAction{Kind: actDeleteTransaction, TransactionID: id})
	}
	return id, created, nil
}

func (w *Work) insertRule(ctx context.Context, r repository.TagRule) (int64, error) {
	id, err := w.repos.Rules.Insert(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("insert tag rule: %w", err)
	}
	w.record(inverseAction{Kind: actDeleteTagRule, RuleID: id})
	return id, nil
}

func (w *Work) deleteRule(ctx context.Context, r repository.TagRule) error {
	n, err := w.repos.Rules.Delete(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("delete tag rule %d: %w", r.ID, err)
	}
	if n == 1 {
		w.record(inverseAction{Kind: actRestoreTagRule, Rule: &r})
	}
	return nil
}

func (w *Work) addAssignment(ctx context.Context, a repository.Assignment) (bool, error) {
	added, err := w.repos.Assignments.Add(ctx, a)
	if err != nil {
		return false, fmt.Errorf("add assignment %s: %w", a, err)
	}
	if added {
		w.record(inverseAction{Kind: actRemoveAssignment, TransactionID: a.TransactionID, RuleID: a.TagRuleID})
	}
	return added, nil
}

func (w *Work) removeAssignment(ctx context.Context, a repository.Assignment) (bool, error) {
	n, err := w.repos.Assignments.Remove(ctx, a)
	if err != nil {
		return false, fmt.Errorf("remove assignment %s: %w", a, err)
	}
	if n == 1 {
		w.record(inverseAction{Kind: actAddAssignment, TransactionID: a.TransactionID, RuleID: a.TagRuleID})
	}
	return n == 1, nil
}
