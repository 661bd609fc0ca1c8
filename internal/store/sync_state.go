package store

import (
	"database/sql"
	"errors"
	"time"
)

// Keys in the sync_state table.
const (
	StateCursor            = "last_update"
	StateFirstSyncComplete = "first_sync_complete"
	StateSalt              = "salt"
	StateKeyCheck          = "key_check"
)

// GetState returns a persisted scalar. ok is false when the key is unset.
func (db *DB) GetState(key string) (value string, ok bool, err error) {
	err = db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetState upserts a persisted scalar.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// AdvanceState stores value only if it is numerically greater than the
// current value, in a single statement. It reports whether the value moved.
func (db *DB) AdvanceState(key string, value int64) (bool, error) {
	res, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		WHERE CAST(sync_state.value AS INTEGER) < CAST(excluded.value AS INTEGER)`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
