package store

import (
	"database/sql"
	"errors"
	"math"

	"github.com/matheus3301/lnchat/internal/ledger"
)

const messageColumns = `id, pubkey, iv, ciphertext, signature, type, sent_timestamp, received_timestamp,
	status, amount, fee, failure_reason, self`

func scanMessage(r rowScanner) (*Message, error) {
	var (
		m             Message
		sig           sql.NullString
		fee           sql.NullInt64
		typ, st, fail string
	)
	if err := r.Scan(&m.ID, &m.Pubkey, &m.IV, &m.Ciphertext, &sig, &typ, &m.SentTimestamp, &m.ReceivedTimestamp,
		&st, &m.Amount, &fee, &fail, &m.Self); err != nil {
		return nil, err
	}
	m.Signature = sig.String
	m.Type = MessageType(typ)
	m.Status = ledger.PaymentStatus(st)
	m.FailureReason = ledger.FailureReason(fail)
	if fee.Valid {
		v := fee.Int64
		m.Fee = &v
	}
	return &m, nil
}

// insertMessage stores m unless its id is already present. The returned
// bool is false for a duplicate, which callers treat as a no-op.
func insertMessage(q querier, m *Message) (bool, error) {
	if m.Type == "" {
		m.Type = TypeText
	}
	if m.Status == "" {
		m.Status = ledger.StatusUnknown
	}
	if m.FailureReason == "" {
		m.FailureReason = ledger.FailureNone
	}
	var fee sql.NullInt64
	if m.Fee != nil {
		fee = sql.NullInt64{Int64: *m.Fee, Valid: true}
	}
	res, err := q.Exec(`
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		m.ID, m.Pubkey, m.IV, m.Ciphertext, nullString(m.Signature), string(m.Type), m.SentTimestamp, m.ReceivedTimestamp,
		string(m.Status), m.Amount, fee, string(m.FailureReason), m.Self)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func updateMessage(q querier, id string, u MessageUpdate) (bool, error) {
	var fee sql.NullInt64
	if u.Fee != nil {
		fee = sql.NullInt64{Int64: *u.Fee, Valid: true}
	}
	res, err := q.Exec(`
		UPDATE messages SET
			status = COALESCE(NULLIF(?, ''), status),
			failure_reason = COALESCE(NULLIF(?, ''), failure_reason),
			fee = COALESCE(?, fee),
			signature = COALESCE(NULLIF(?, ''), signature)
		WHERE id = ?`,
		string(u.Status), string(u.FailureReason), fee, u.Signature, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func getMessage(q querier, id string) (*Message, error) {
	m, err := scanMessage(q.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// InsertMessage stores a message, reporting false if the id already existed.
func (db *DB) InsertMessage(m *Message) (bool, error) {
	return insertMessage(db, m)
}

// GetMessage returns a message by id, or nil if none exists.
func (db *DB) GetMessage(id string) (*Message, error) {
	return getMessage(db, id)
}

// ListMessages returns messages for a conversation using keyset pagination
// on (received timestamp, id), newest first. Pass the last message of the
// previous page as beforeTs and beforeID; an empty beforeID pages on the
// timestamp alone.
func (db *DB) ListMessages(pubkey string, beforeTs int64, beforeID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = math.MaxInt64
		beforeID = ""
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE pubkey = ?
		  AND (received_timestamp < ? OR (? != '' AND received_timestamp = ? AND id > ?))
		ORDER BY received_timestamp DESC, id
		LIMIT ?`, pubkey, beforeTs, beforeID, beforeTs, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// CountMessages returns the number of stored messages for a conversation.
func (db *DB) CountMessages(pubkey string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE pubkey = ?`, pubkey).Scan(&n)
	return n, err
}

// MessageCount returns the total number of stored messages.
func (db *DB) MessageCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// CountByStatus returns the number of messages in the given status.
func (db *DB) CountByStatus(status ledger.PaymentStatus) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE status = ?`, string(status)).Scan(&n)
	return n, err
}

// FixPendingMessages moves every IN_FLIGHT message, and every conversation
// whose latest status mirrors IN_FLIGHT, to UNKNOWN. Running it again is a
// no-op.
func (db *DB) FixPendingMessages() (messages, conversations int64, err error) {
	err = db.WithTx(func(tx *Tx) error {
		res, err := tx.tx.Exec(`UPDATE messages SET status = ? WHERE status = ?`,
			string(ledger.StatusUnknown), string(ledger.StatusInFlight))
		if err != nil {
			return err
		}
		messages, _ = res.RowsAffected()

		res, err = tx.tx.Exec(`UPDATE conversations SET latest_message_status = ? WHERE latest_message_status = ?`,
			string(ledger.StatusUnknown), string(ledger.StatusInFlight))
		if err != nil {
			return err
		}
		conversations, _ = res.RowsAffected()
		return nil
	})
	return messages, conversations, err
}

// InsertMessage stores a message inside the transaction.
func (tx *Tx) InsertMessage(m *Message) (bool, error) {
	return insertMessage(tx.tx, m)
}

// GetMessage reads a message inside the transaction.
func (tx *Tx) GetMessage(id string) (*Message, error) {
	return getMessage(tx.tx, id)
}

// UpdateMessage applies an outbound result, reporting false if the message
// does not exist.
func (tx *Tx) UpdateMessage(id string, u MessageUpdate) (bool, error) {
	return updateMessage(tx.tx, id, u)
}
