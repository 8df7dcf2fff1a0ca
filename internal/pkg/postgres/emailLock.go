package postgres

import (
	"context"
	"fmt"
)

// LockEmailTable marks email sending as in-progress for (id, msgType).
// Fails if the email was already sent or is being sent - the guard against double sending
func (db *DB) LockEmailTable(ctx context.Context, id, msgType string) error {
	rows, err := db.pool.Query(ctx, `INSERT INTO email_lock(id, msg_type, sent)
	VALUES($1, $2, 0) ON CONFLICT (id, msg_type) DO NOTHING`, id, msgType)
	if err != nil {
		return fmt.Errorf("can't insert email_lock: %w", err)
	}
	rows.Close()
	cmd, err := db.pool.Exec(ctx, `UPDATE email_lock SET sent = 2
	WHERE id = $1 AND msg_type = $2 AND sent = 0`, id, msgType)
	if err != nil {
		return fmt.Errorf("can't lock email table: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("can't lock email table, already processed")
	}
	return nil
}

// UnLockEmailTable sets the final state for (id, msgType): 1 - sent, 0 - free to retry
func (db *DB) UnLockEmailTable(ctx context.Context, id, msgType string, value *int) error {
	if value == nil {
		return fmt.Errorf("no value")
	}
	cmd, err := db.pool.Exec(ctx, `UPDATE email_lock SET sent = $3
	WHERE id = $1 AND msg_type = $2`, id, msgType, *value)
	if err != nil {
		return fmt.Errorf("can't unlock email table: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("can't unlock email table, no record")
	}
	return nil
}
