package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jask/tallybook/internal/database"
	"github.com/jask/tallybook/internal/database/repository"
)

// DefaultMaxUndoSteps bounds the stored history.
const DefaultMaxUndoSteps = 128

// UndoLog records one step per mutating command and replays steps newest first.
type UndoLog struct {
	MaxSteps int
	Logger   *slog.Logger
}

func (u *UndoLog) logger() *slog.Logger {
	if u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}

// record stores the inverses collected by w as one step named name. Nothing
// is stored when w changed nothing. It returns the step id, or 0.
func (u *UndoLog) record(ctx context.Context, w *Work, name string) (int64, error) {
	if !w.Changed() {
		return 0, nil
	}
	actions := make([]repository.UndoAction, 0, len(w.inverse))
	for i := len(w.inverse) - 1; i >= 0; i-- {
		a, err := w.inverse[i].encode()
		if err != nil {
			return 0, err
		}
		actions = append(actions, a)
	}
	id, err := w.repos.Undo.InsertStep(ctx, name, database.Now(), actions)
	if err != nil {
		return 0, fmt.Errorf("record undo step: %w", err)
	}
	keep := u.MaxSteps
	if keep <= 0 {
		keep = DefaultMaxUndoSteps
	}
	dropped, err := w.repos.Undo.Truncate(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("truncate undo history: %w", err)
	}
	if dropped > 0 {
		u.logger().Debug("undo history truncated", "component", "undo", "dropped", dropped)
	}
	return id, nil
}

// Peek returns the newest step without consuming it, or nil.
func (u *UndoLog) Peek(ctx context.Context, repos repository.Repos) (*repository.UndoStep, error) {
	return repos.Undo.Latest(ctx)
}

// pop applies the newest step's inverses in stored order and deletes the
// step. Callers run it inside a transaction so a failed inverse leaves the
// step and the ledger untouched.
func (u *UndoLog) pop(ctx context.Context, repos repository.Repos) (string, error) {
	step, err := repos.Undo.Latest(ctx)
	if err != nil {
		return "", err
	}
	if step == nil {
		return "", ErrNothingToUndo
	}
	actions, err := repos.Undo.Actions(ctx, step.ID)
	if err != nil {
		return "", err
	}
	for _, ua := range actions {
		a, err := decodeAction(ua)
		if err != nil {
			return "", err
		}
		if err := apply(ctx, repos, a); err != nil {
			return "", fmt.Errorf("undo %q (step %d, action %d): %w", step.Name, step.ID, ua.Seq, err)
		}
	}
	if _, err := repos.Undo.DeleteStep(ctx, step.ID); err != nil {
		return "", err
	}
	u.logger().Info("undone", "component", "undo", "step", step.ID, "command", step.Name, "actions", len(actions))
	return step.Name, nil
}

func apply(ctx context.Context, repos repository.Repos, a inverseAction) error {
	var (
		n   int64
		err error
	)
	switch a.Kind {
	case actDeleteTransaction:
		n, err = repos.Transactions.Delete(ctx, a.TransactionID)
	case actDeleteAccount:
		n, err = repos.Accounts.Delete(ctx, a.AccountName)
	case actRestoreAccount:
		if a.Account == nil {
			return fmt.Errorf("%w: %s without account", ErrIntegrity, a.Kind)
		}
		n, err = repos.Accounts.Update(ctx, *a.Account)
	case actDeleteTagRule:
		n, err = repos.Rules.Delete(ctx, a.RuleID)
	case actRestoreTagRule:
		if a.Rule == nil {
			return fmt.Errorf("%w: %s without rule", ErrIntegrity, a.Kind)
		}
		n, err = repos.Rules.Restore(ctx, *a.Rule)
	case actAddAssignment:
		n, err = repos.Assignments.Insert(ctx, repository.Assignment{TransactionID: a.TransactionID, TagRuleID: a.RuleID})
	case actRemoveAssignment:
		n, err = repos.Assignments.Remove(ctx, repository.Assignment{TransactionID: a.TransactionID, TagRuleID: a.RuleID})
	default:
		return fmt.Errorf("%w: unknown action %q", ErrIntegrity, a.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIntegrity, a.Kind, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s affected %d rows", ErrIntegrity, a.Kind, n)
	}
	return nil
}
