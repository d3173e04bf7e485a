package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jask/tallybook/internal/database/repository"
)

// resolveAccount finds an account by name or alias. Unknown references are a
// validation error carrying the closest known name, if any is close.
func resolveAccount(ctx context.Context, repos repository.Repos, ref string) (repository.Account, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return repository.Account{}, validationf("account is required")
	}
	acct, err := repos.Accounts.Resolve(ctx, ref)
	if err != nil {
		return repository.Account{}, err
	}
	if acct != nil {
		return *acct, nil
	}
	all, err := repos.Accounts.List(ctx)
	if err != nil {
		return repository.Account{}, err
	}
	if s := suggest(ref, all); s != "" {
		return repository.Account{}, validationf("unknown account %q (did you mean %q?)", ref, s)
	}
	return repository.Account{}, validationf("unknown account %q", ref)
}

// suggest returns the account name or alias nearest to ref, or "" when
// nothing is within a third of its length.
func suggest(ref string, accounts []repository.Account) string {
	best, bestDist := "", len(ref)/3+1
	consider := func(candidate string) {
		d := levenshtein.ComputeDistance(fold(ref), fold(candidate))
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	for _, a := range accounts {
		consider(a.Name)
		if a.Alias != nil {
			consider(*a.Alias)
		}
	}
	return best
}

// ListAccounts returns every account ordered by name.
func (l *Ledger) ListAccounts(ctx context.Context) ([]repository.Account, error) {
	return repository.NewAccountRepo(l.DB).List(ctx)
}

// SetAlias gives an account a short alias. The alias may not equal any
// account name or another account's alias.
func (l *Ledger) SetAlias(ctx context.Context, account, alias string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return validationf("alias is required")
	}
	return l.command(ctx, "set-alias", func(w *Work) error {
		acct, err := resolveAccount(ctx, w.repos, account)
		if err != nil {
			return err
		}
		if acct.Alias != nil && *acct.Alias == alias {
			return nil
		}
		clash, err := w.repos.Accounts.Resolve(ctx, alias)
		if err != nil {
			return err
		}
		if clash != nil {
			if clash.Name == alias {
				return fmt.Errorf("%w: alias %q is an account name", ErrConflict, alias)
			}
			return fmt.Errorf("%w: alias %q already used by %q", ErrConflict, alias, clash.Name)
		}
		updated := acct
		updated.Alias = &alias
		return w.updateAccount(ctx, acct, updated)
	})
}

// DeleteAlias clears an account's alias.
func (l *Ledger) DeleteAlias(ctx context.Context, account string) error {
	return l.command(ctx, "delete-alias", func(w *Work) error {
		acct, err := resolveAccount(ctx, w.repos, account)
		if err != nil {
			return err
		}
		if acct.Alias == nil {
			return nil
		}
		updated := acct
		updated.Alias = nil
		return w.updateAccount(ctx, acct, updated)
	})
}

// SelectAccount marks an account as part of the default query scope.
func (l *Ledger) SelectAccount(ctx context.Context, account string) error {
	return l.command(ctx, "select-account", func(w *Work) error {
		acct, err := resolveAccount(ctx, w.repos, account)
		if err != nil {
			return err
		}
		return setSelected(ctx, w, acct, true)
	})
}

// UnselectAccount drops an account from the default query scope. An empty
// reference unselects every account.
func (l *Ledger) UnselectAccount(ctx context.Context, account string) error {
	return l.command(ctx, "unselect-account", func(w *Work) error {
		if strings.TrimSpace(account) == "" {
			selected, err := w.repos.Accounts.Selected(ctx)
			if err != nil {
				return err
			}
			for _, a := range selected {
				if err := setSelected(ctx, w, a, false); err != nil {
					return err
				}
			}
			return nil
		}
		acct, err := resolveAccount(ctx, w.repos, account)
		if err != nil {
			return err
		}
		return setSelected(ctx, w, acct, false)
	})
}

func setSelected(ctx context.Context, w *Work, acct repository.Account, selected bool) error {
	if acct.Selected == selected {
		return nil
	}
	updated := acct
	updated.Selected = selected
	return w.updateAccount(ctx, acct, updated)
}
