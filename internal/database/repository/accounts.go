package repository

import (
	"context"
	"database/sql"
	"errors"
)

// AccountRepo handles accounts.
type AccountRepo struct {
	db DBTX
}

func NewAccountRepo(db DBTX) *AccountRepo { return &AccountRepo{db: db} }

// Insert creates an account; it reports false when the name already exists.
func (r *AccountRepo) Insert(ctx context.Context, a Account) (bool, error) {
	n, err := affected(r.db.ExecContext(ctx, `INSERT OR IGNORE INTO accounts(name, alias, selected) VALUES(?, ?, ?)`, a.Name, a.Alias, a.Selected))
	return n == 1, err
}

// Update overwrites alias and selected for the named account.
func (r *AccountRepo) Update(ctx context.Context, a Account) (int64, error) {
	return affected(r.db.ExecContext(ctx, `UPDATE accounts SET alias = ?, selected = ? WHERE name = ?`, a.Alias, a.Selected, a.Name))
}

func (r *AccountRepo) Delete(ctx context.Context, name string) (int64, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, name))
}

// Get returns the account by name, or nil when missing.
func (r *AccountRepo) Get(ctx context.Context, name string) (*Account, error) {
	return r.one(ctx, `SELECT name, alias, selected FROM accounts WHERE name = ?`, name)
}

// Resolve finds an account by name or alias.
func (r *AccountRepo) Resolve(ctx context.Context, nameOrAlias string) (*Account, error) {
	return r.one(ctx, `SELECT name, alias, selected FROM accounts WHERE name = ?1 OR alias = ?1 ORDER BY name = ?1 DESC LIMIT 1`, nameOrAlias)
}

func (r *AccountRepo) one(ctx context.Context, query string, args ...any) (*Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]Account, error) {
	return r.list(ctx, `SELECT name, alias, selected FROM accounts ORDER BY name`)
}

func (r *AccountRepo) Selected(ctx context.Context) ([]Account, error) {
	return r.list(ctx, `SELECT name, alias, selected FROM accounts WHERE selected = 1 ORDER BY name`)
}

func (r *AccountRepo) list(ctx context.Context, query string) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAccount(s scanner) (Account, error) {
	var a Account
	var alias sql.NullString
	if err := s.Scan(&a.Name, &alias, &a.Selected); err != nil {
		return Account{}, err
	}
	if alias.Valid {
		a.Alias = &alias.String
	}
	return a, nil
}
