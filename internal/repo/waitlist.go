package repo

import (
	"context"
	"database/sql"
	"fmt"

	"homeward/internal/queue"
)

// EnqueueWaitlistTx adds an adopter to an animal's waiting list and
// returns the assigned arrival number. A second enqueue for the same
// pair is rejected by the unique constraint.
func (r Repo) EnqueueWaitlistTx(ctx context.Context, tx *sql.Tx, animalID, adopterName string, score int, enqueuedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO waitlist(animal_id,adopter_name,score,enqueued_at) VALUES (?,?,?,?)`,
		animalID, adopterName, score, enqueuedAt)
	if err != nil {
		return 0, fmt.Errorf("enqueue waitlist: %w", err)
	}
	return res.LastInsertId()
}

// LoadWaitlist rebuilds the in-memory waiting queue for one animal.
// Arrival order is the persisted autoincrement, so rebuilding is
// deterministic across process restarts.
func (r Repo) LoadWaitlist(ctx context.Context, animalID string) (*queue.WaitingQueue, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT arrival,adopter_name,score,enqueued_at FROM waitlist WHERE animal_id=? ORDER BY arrival ASC`, animalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []queue.Entry
	for rows.Next() {
		var e queue.Entry
		if err := rows.Scan(&e.Arrival, &e.Adopter, &e.Score, &e.EnqueuedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return queue.Rehydrate(entries), nil
}

// DeleteWaitlistEntryTx removes a popped entry by its arrival number.
func (r Repo) DeleteWaitlistEntryTx(ctx context.Context, tx *sql.Tx, arrival int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM waitlist WHERE arrival=?`, arrival)
	if err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
