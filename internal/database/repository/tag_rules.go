package repository

import (
	"context"
	"database/sql"
	"errors"
)

// TagRuleRepo handles tag rules. Rules are never updated in place.
type TagRuleRepo struct {
	db DBTX
}

func NewTagRuleRepo(db DBTX) *TagRuleRepo { return &TagRuleRepo{db: db} }

const tagRuleColumns = `id, tag, human_readable, transaction_id, description_contains, transaction_type, amount_min, amount_max, from_date, to_date`

func ruleArgs(r TagRule) []any {
	var typ any
	if r.TransactionType != nil {
		typ = string(*r.TransactionType)
	}
	return []any{r.Tag, r.HumanReadable, r.TransactionID, r.DescriptionContains, typ, r.AmountMin, r.AmountMax, formatDate(r.FromDate), formatDate(r.ToDate)}
}

// Insert stores a new rule and returns its id. r.ID is ignored.
func (r *TagRuleRepo) Insert(ctx context.Context, rule TagRule) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO tag_rules(tag, human_readable, transaction_id, description_contains, transaction_type, amount_min, amount_max, from_date, to_date)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`, ruleArgs(rule)...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Restore re-inserts a previously deleted rule under its original id.
func (r *TagRuleRepo) Restore(ctx context.Context, rule TagRule) (int64, error) {
	args := append([]any{rule.ID}, ruleArgs(rule)...)
	return affected(r.db.ExecContext(ctx, `
	INSERT INTO tag_rules(id, tag, human_readable, transaction_id, description_contains, transaction_type, amount_min, amount_max, from_date, to_date)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...))
}

func (r *TagRuleRepo) Delete(ctx context.Context, id int64) (int64, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM tag_rules WHERE id = ?`, id))
}

// FindDuplicate returns the id of a stored rule with the same attribute
// tuple as rule, or 0. NULL attributes compare equal to NULL.
func (r *TagRuleRepo) FindDuplicate(ctx context.Context, rule TagRule) (int64, error) {
	args := ruleArgs(rule)
	args = append(args[:1], args[2:]...) // human_readable is not part of the tuple
	var id int64
	err := r.db.QueryRowContext(ctx, `
	SELECT id FROM tag_rules
	WHERE tag = ? AND transaction_id IS ? AND description_contains IS ? AND transaction_type IS ?
	  AND amount_min IS ? AND amount_max IS ? AND from_date IS ? AND to_date IS ?
	ORDER BY id LIMIT 1`, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// Get returns the rule, or nil when missing.
func (r *TagRuleRepo) Get(ctx context.Context, id int64) (*TagRule, error) {
	rule, err := scanTagRule(r.db.QueryRowContext(ctx, `SELECT `+tagRuleColumns+` FROM tag_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns every rule ordered by id.
func (r *TagRuleRepo) List(ctx context.Context) ([]TagRule, error) {
	return r.list(ctx, `SELECT `+tagRuleColumns+` FROM tag_rules ORDER BY id`)
}

// ListForTransaction returns the rules currently assigned to a transaction.
func (r *TagRuleRepo) ListForTransaction(ctx context.Context, transactionID int64) ([]TagRule, error) {
	return r.list(ctx, `SELECT `+tagRuleColumns+` FROM tag_rules
	WHERE id IN (SELECT tag_rule_id FROM transactions_tags WHERE transaction_id = ?) ORDER BY id`, transactionID)
}

func (r *TagRuleRepo) list(ctx context.Context, query string, args ...any) ([]TagRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TagRule
	for rows.Next() {
		rule, err := scanTagRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanTagRule(s scanner) (TagRule, error) {
	var (
		rule       TagRule
		txnID      sql.NullInt64
		desc, typ  sql.NullString
		amin, amax sql.NullFloat64
		from, to   sql.NullString
	)
	if err := s.Scan(&rule.ID, &rule.Tag, &rule.HumanReadable, &txnID, &desc, &typ, &amin, &amax, &from, &to); err != nil {
		return TagRule{}, err
	}
	if txnID.Valid {
		rule.TransactionID = &txnID.Int64
	}
	if desc.Valid {
		rule.DescriptionContains = &desc.String
	}
	if typ.Valid {
		tt := TransactionType(typ.String)
		rule.TransactionType = &tt
	}
	if amin.Valid {
		rule.AmountMin = &amin.Float64
	}
	if amax.Valid {
		rule.AmountMax = &amax.Float64
	}
	var err error
	if rule.FromDate, err = parseDate(from); err != nil {
		return TagRule{}, err
	}
	if rule.ToDate, err = parseDate(to); err != nil {
		return TagRule{}, err
	}
	return rule, nil
}
