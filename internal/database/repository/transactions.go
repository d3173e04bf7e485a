package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// TransactionFilters narrows List. Zero values mean no constraint.
type TransactionFilters struct {
	ID        *int64
	Accounts  []string
	From      *time.Time // inclusive
	To        *time.Time // inclusive
	AmountMin *float64   // inclusive, on max(debit, credit)
	AmountMax *float64   // exclusive
	Types     []TransactionType
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `id, account_name, posted_date, description, debit_amount, credit_amount, balance, transaction_type, currency`

// Insert stores t and returns its id. It reports created=false and the id of
// the existing row when the same 8-tuple is already stored.
func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) (id int64, created bool, err error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(account_name, posted_date, description, debit_amount, credit_amount, balance, transaction_type, currency)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING;
	`, t.AccountName, t.PostedDate.Format(DateLayout), t.Description, t.Debit, t.Credit, t.Balance, string(t.Type), t.Currency)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 1 {
		id, err = res.LastInsertId()
		return id, true, err
	}
	err = r.db.QueryRowContext(ctx, `
	SELECT id FROM transactions
	WHERE account_name = ? AND posted_date = ? AND description = ? AND debit_amount = ?
	  AND credit_amount = ? AND balance = ? AND transaction_type = ? AND currency = ?`,
		t.AccountName, t.PostedDate.Format(DateLayout), t.Description, t.Debit, t.Credit, t.Balance, string(t.Type), t.Currency,
	).Scan(&id)
	return id, false, err
}

func (r *TransactionRepo) Delete(ctx context.Context, id int64) (int64, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id))
}

// Get returns the transaction, or nil when missing.
func (r *TransactionRepo) Get(ctx context.Context, id int64) (*Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

// CountForAccount counts transactions referencing the account.
func (r *TransactionRepo) CountForAccount(ctx context.Context, name string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_name = ?`, name).Scan(&n)
	return n, err
}

// List returns transactions ordered by id.
func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	var where []string
	var args []interface{}

	if f.ID != nil {
		where = append(where, "id = ?")
		args = append(args, *f.ID)
	}
	if len(f.Accounts) > 0 {
		where = append(where, "account_name IN ("+placeholders(len(f.Accounts))+")")
		for _, a := range f.Accounts {
			args = append(args, a)
		}
	}
	if f.From != nil {
		where = append(where, "posted_date >= ?")
		args = append(args, f.From.Format(DateLayout))
	}
	if f.To != nil {
		where = append(where, "posted_date <= ?")
		args = append(args, f.To.Format(DateLayout))
	}
	if f.AmountMin != nil {
		where = append(where, "MAX(debit_amount, credit_amount) >= ?")
		args = append(args, *f.AmountMin)
	}
	if f.AmountMax != nil {
		where = append(where, "MAX(debit_amount, credit_amount) < ?")
		args = append(args, *f.AmountMax)
	}
	if len(f.Types) > 0 {
		where = append(where, "transaction_type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(s scanner) (Transaction, error) {
	var t Transaction
	var posted, typ string
	if err := s.Scan(&t.ID, &t.AccountName, &posted, &t.Description, &t.Debit, &t.Credit, &t.Balance, &typ, &t.Currency); err != nil {
		return Transaction{}, err
	}
	d, err := time.Parse(DateLayout, posted)
	if err != nil {
		return Transaction{}, err
	}
	t.PostedDate = d
	t.Type = TransactionType(typ)
	return t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
