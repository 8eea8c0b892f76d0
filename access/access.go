// Package access maintains the durable ordered allow-list of user ids permitted to use
// the bot. The owner id is implicitly authorized and never stored in the list.
package access

import (
	"context"
	"database/sql"
)

// AddResult reports the outcome of Add.
type AddResult int

const (
	Added AddResult = iota
	AlreadyPresent
)

// RemoveResult reports the outcome of Remove.
type RemoveResult int

const (
	Removed RemoveResult = iota
	NotFound
)

// List is the durable allow-list backed by the allowed_users table.
// Each mutation is a single statement, so the full updated set is persisted
// before the call returns.
type List struct {
	DB      *sql.DB
	OwnerID int64
}

// IsAuthorized reports whether id is the owner or a member of the allow-list.
func (l *List) IsAuthorized(ctx context.Context, id int64) (bool, error) {
	if id == l.OwnerID {
		return true, nil
	}
	var one int
	err := l.DB.QueryRowContext(ctx, `SELECT 1 FROM allowed_users WHERE user_id=$1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add inserts id into the allow-list. Adding an existing id is not an error;
// it reports AlreadyPresent and leaves the list unchanged.
func (l *List) Add(ctx context.Context, id int64) (AddResult, error) {
	res, err := l.DB.ExecContext(ctx,
		`INSERT INTO allowed_users(user_id) VALUES($1) ON CONFLICT(user_id) DO NOTHING`, id)
	if err != nil {
		return AlreadyPresent, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AlreadyPresent, err
	}
	if n == 0 {
		return AlreadyPresent, nil
	}
	return Added, nil
}

// Remove deletes id from the allow-list.
func (l *List) Remove(ctx context.Context, id int64) (RemoveResult, error) {
	res, err := l.DB.ExecContext(ctx, `DELETE FROM allowed_users WHERE user_id=$1`, id)
	if err != nil {
		return NotFound, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return NotFound, err
	}
	if n == 0 {
		return NotFound, nil
	}
	return Removed, nil
}

// Snapshot returns the current members in insertion order. Broadcasts iterate over
// this point-in-time copy, so concurrent Add/Remove calls don't affect an in-flight
// fan-out.
func (l *List) Snapshot(ctx context.Context) ([]int64, error) {
	rows, err := l.DB.QueryContext(ctx, `SELECT user_id FROM allowed_users ORDER BY position ASC`)
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

// Count returns the number of entries in the allow-list (owner excluded).
func (l *List) Count(ctx context.Context) (int, error) {
	var n int
	err := l.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM allowed_users`).Scan(&n)
	return n, err
}
