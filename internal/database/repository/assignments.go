package repository

import (
	"context"
)

// AssignmentRepo handles the derived transactions_tags relation.
type AssignmentRepo struct {
	db DBTX
}

func NewAssignmentRepo(db DBTX) *AssignmentRepo { return &AssignmentRepo{db: db} }

// Add inserts the pair; it reports false when it already existed.
func (r *AssignmentRepo) Add(ctx context.Context, a Assignment) (bool, error) {
	n, err := affected(r.db.ExecContext(ctx, `INSERT OR IGNORE INTO transactions_tags(transaction_id, tag_rule_id) VALUES(?, ?)`, a.TransactionID, a.TagRuleID))
	return n == 1, err
}

// Insert inserts the pair and fails if it already exists.
func (r *AssignmentRepo) Insert(ctx context.Context, a Assignment) (int64, error) {
	return affected(r.db.ExecContext(ctx, `INSERT INTO transactions_tags(transaction_id, tag_rule_id) VALUES(?, ?)`, a.TransactionID, a.TagRuleID))
}

func (r *AssignmentRepo) Remove(ctx context.Context, a Assignment) (int64, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM transactions_tags WHERE transaction_id = ? AND tag_rule_id = ?`, a.TransactionID, a.TagRuleID))
}

// ForTransaction returns the rule ids assigned to a transaction, ascending.
func (r *AssignmentRepo) ForTransaction(ctx context.Context, transactionID int64) ([]int64, error) {
	return r.ids(ctx, `SELECT tag_rule_id FROM transactions_tags WHERE transaction_id = ? ORDER BY tag_rule_id`, transactionID)
}

// ForRule returns the transaction ids a rule is assigned to, ascending.
func (r *AssignmentRepo) ForRule(ctx context.Context, ruleID int64) ([]int64, error) {
	return r.ids(ctx, `SELECT transaction_id FROM transactions_tags WHERE tag_rule_id = ? ORDER BY transaction_id`, ruleID)
}

func (r *AssignmentRepo) ids(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PinnedTransactions returns the transactions holding at least one pinned
// rule assignment.
func (r *AssignmentRepo) PinnedTransactions(ctx context.Context) (map[int64]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT DISTINCT tt.transaction_id
	FROM transactions_tags tt JOIN tag_rules tr ON tr.id = tt.tag_rule_id
	WHERE tr.transaction_id IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// List returns the full relation ordered by (transaction, rule).
func (r *AssignmentRepo) List(ctx context.Context) ([]Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT transaction_id, tag_rule_id FROM transactions_tags ORDER BY transaction_id, tag_rule_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.TransactionID, &a.TagRuleID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TagsByTransaction maps each tagged transaction to its distinct tag labels,
// sorted.
func (r *AssignmentRepo) TagsByTransaction(ctx context.Context) (map[int64][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT DISTINCT tt.transaction_id, tr.tag
	FROM transactions_tags tt JOIN tag_rules tr ON tr.id = tt.tag_rule_id
	ORDER BY tt.transaction_id, tr.tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		out[id] = append(out[id], tag)
	}
	return out, rows.Err()
}
