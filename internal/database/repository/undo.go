package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UndoRepo stores undo steps and their inverse actions.
type UndoRepo struct {
	db DBTX
}

func NewUndoRepo(db DBTX) *UndoRepo { return &UndoRepo{db: db} }

// InsertStep stores a step with its actions in replay order.
func (r *UndoRepo) InsertStep(ctx context.Context, name string, at time.Time, actions []UndoAction) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO undo_steps(name, created_at) VALUES(?, ?)`, name, at.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for i, a := range actions {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO undo_actions(step_id, seq, kind, payload) VALUES(?, ?, ?, ?)`, id, i, a.Kind, string(a.Payload)); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Latest returns the newest step, or nil when the stack is empty.
func (r *UndoRepo) Latest(ctx context.Context) (*UndoStep, error) {
	var s UndoStep
	var at string
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM undo_steps ORDER BY id DESC LIMIT 1`).Scan(&s.ID, &s.Name, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339, at); err != nil {
		return nil, err
	}
	return &s, nil
}

// Actions returns a step's actions in replay order.
func (r *UndoRepo) Actions(ctx context.Context, stepID int64) ([]UndoAction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT step_id, seq, kind, payload FROM undo_actions WHERE step_id = ? ORDER BY seq`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UndoAction
	for rows.Next() {
		var a UndoAction
		var payload string
		if err := rows.Scan(&a.StepID, &a.Seq, &a.Kind, &payload); err != nil {
			return nil, err
		}
		a.Payload = []byte(payload)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *UndoRepo) DeleteStep(ctx context.Context, id int64) (int64, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM undo_steps WHERE id = ?`, id))
}

// Truncate keeps only the newest keep steps.
func (r *UndoRepo) Truncate(ctx context.Context, keep int) (int64, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM undo_steps WHERE id NOT IN (SELECT id FROM undo_steps ORDER BY id DESC LIMIT ?)`, keep))
}

// Clear drops the whole history.
func (r *UndoRepo) Clear(ctx context.Context) (int64, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM undo_steps`))
}

func (r *UndoRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM undo_steps`).Scan(&n)
	return n, err
}
