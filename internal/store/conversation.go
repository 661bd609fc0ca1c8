package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/matheus3301/lnchat/internal/ledger"
)

const conversationColumns = `pubkey, alias, color, unread_count, blocked, bookmarked, char_limit,
	latest_message_id, latest_message_status, last_update_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(r rowScanner) (*Conversation, error) {
	var (
		c                               Conversation
		alias, color, latestID, latestS sql.NullString
		lastUpdate                      sql.NullInt64
		blocked                         string
	)
	if err := r.Scan(&c.Pubkey, &alias, &color, &c.UnreadCount, &blocked, &c.Bookmarked, &c.CharLimit,
		&latestID, &latestS, &lastUpdate); err != nil {
		return nil, err
	}
	c.Alias = alias.String
	c.Color = color.String
	c.Blocked = Blocked(blocked)
	c.LatestMessageID = latestID.String
	c.LatestMessageStatus = ledger.PaymentStatus(latestS.String)
	c.LastUpdateTime = lastUpdate.Int64
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func normalize(c *Conversation) {
	if c.Blocked == "" {
		c.Blocked = BlockedFalse
	}
	if c.CharLimit == 0 {
		c.CharLimit = DefaultCharLimit
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
}

func getConversation(q querier, pubkey string) (*Conversation, error) {
	c, err := scanConversation(q.QueryRow(`SELECT `+conversationColumns+` FROM conversations WHERE pubkey = ?`, pubkey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

const bulkChunk = 500

func bulkGetConversations(q querier, pubkeys []string) (map[string]*Conversation, error) {
	out := make(map[string]*Conversation, len(pubkeys))
	for start := 0; start < len(pubkeys); start += bulkChunk {
		end := min(start+bulkChunk, len(pubkeys))
		if err := bulkGetChunk(q, pubkeys[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func bulkGetChunk(q querier, pubkeys []string, out map[string]*Conversation) error {
	args := make([]any, len(pubkeys))
	for i, pk := range pubkeys {
		args[i] = pk
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pubkeys)), ",")
	rows, err := q.Query(`SELECT `+conversationColumns+` FROM conversations WHERE pubkey IN (`+placeholders+`)`, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return err
		}
		out[c.Pubkey] = c
	}
	return rows.Err()
}

// insertConversation adds c unless the pubkey already exists.
func insertConversation(q querier, c *Conversation) (bool, error) {
	normalize(c)
	res, err := q.Exec(`
		INSERT INTO conversations (pubkey, alias, color, unread_count, blocked, bookmarked, char_limit,
			latest_message_id, latest_message_status, last_update_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO NOTHING`,
		c.Pubkey, nullString(c.Alias), nullString(c.Color), c.UnreadCount, string(c.Blocked), c.Bookmarked, c.CharLimit,
		nullString(c.LatestMessageID), nullString(string(c.LatestMessageStatus)), nullInt(c.LastUpdateTime),
		time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// putConversation writes every field of an existing row.
func putConversation(q querier, c *Conversation) error {
	normalize(c)
	_, err := q.Exec(`
		UPDATE conversations SET
			alias = ?, color = ?, unread_count = ?, blocked = ?, bookmarked = ?, char_limit = ?,
			latest_message_id = ?, latest_message_status = ?, last_update_time = ?
		WHERE pubkey = ?`,
		nullString(c.Alias), nullString(c.Color), c.UnreadCount, string(c.Blocked), c.Bookmarked, c.CharLimit,
		nullString(c.LatestMessageID), nullString(string(c.LatestMessageStatus)), nullInt(c.LastUpdateTime),
		c.Pubkey)
	return err
}

func setLatest(q querier, pubkey, messageID string, status ledger.PaymentStatus, at int64) error {
	_, err := q.Exec(`
		UPDATE conversations SET latest_message_id = ?, latest_message_status = ?, last_update_time = ?
		WHERE pubkey = ?`, messageID, string(status), at, pubkey)
	return err
}

func incrementUnread(q querier, pubkey string, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := q.Exec(`UPDATE conversations SET unread_count = unread_count + ? WHERE pubkey = ?`, n, pubkey)
	return err
}

// updateLatestStatus mirrors a message status change onto the conversation
// when that message is still the latest one.
func updateLatestStatus(q querier, pubkey, messageID string, status ledger.PaymentStatus) error {
	_, err := q.Exec(`
		UPDATE conversations SET latest_message_status = ?
		WHERE pubkey = ? AND latest_message_id = ?`, string(status), pubkey, messageID)
	return err
}

// GetConversation returns a conversation by pubkey, or nil if none exists.
func (db *DB) GetConversation(pubkey string) (*Conversation, error) {
	return getConversation(db, pubkey)
}

// BulkGetConversations fetches the given conversations in one query, keyed
// by pubkey. Missing pubkeys are absent from the map.
func (db *DB) BulkGetConversations(pubkeys []string) (map[string]*Conversation, error) {
	return bulkGetConversations(db, pubkeys)
}

// InsertConversation adds a conversation, reporting false if it already
// existed.
func (db *DB) InsertConversation(c *Conversation) (bool, error) {
	return insertConversation(db, c)
}

// ConversationFilter narrows ListConversations.
type ConversationFilter struct {
	Blocked        Blocked // empty matches every value
	BookmarkedOnly bool
	IncludeAnon    bool
}

// ListConversations returns conversations ordered by most recent activity.
func (db *DB) ListConversations(f ConversationFilter, limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	where := []string{"1 = 1"}
	var args []any
	if f.Blocked != "" {
		where = append(where, "blocked = ?")
		args = append(args, string(f.Blocked))
	}
	if f.BookmarkedOnly {
		where = append(where, "bookmarked = 1")
	}
	if !f.IncludeAnon {
		where = append(where, "pubkey <> ?")
		args = append(args, AnonPubkey)
	}
	args = append(args, limit, offset)

	rows, err := db.Query(`
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY COALESCE(last_update_time, 0) DESC, pubkey
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, rows.Err()
}

// CountConversations returns the number of conversations, excluding the
// anonymous bucket.
func (db *DB) CountConversations() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE pubkey <> ?`, AnonPubkey).Scan(&n)
	return n, err
}

// ResetUnread zeroes the unread counter.
func (db *DB) ResetUnread(pubkey string) error {
	_, err := db.Exec(`UPDATE conversations SET unread_count = 0 WHERE pubkey = ?`, pubkey)
	return err
}

// SetBlocked updates the block flag, reporting false if no row matched.
func (db *DB) SetBlocked(pubkey string, b Blocked) (bool, error) {
	res, err := db.Exec(`UPDATE conversations SET blocked = ? WHERE pubkey = ?`, string(b), pubkey)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetBookmarked updates the bookmark flag, reporting false if no row matched.
func (db *DB) SetBookmarked(pubkey string, bookmarked bool) (bool, error) {
	res, err := db.Exec(`UPDATE conversations SET bookmarked = ? WHERE pubkey = ?`, bookmarked, pubkey)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearConversations deletes every conversation row. It is only used to
// discard a failed first sync.
func (db *DB) ClearConversations() error {
	_, err := db.Exec(`DELETE FROM conversations`)
	return err
}

// GetConversation reads a conversation inside the transaction.
func (tx *Tx) GetConversation(pubkey string) (*Conversation, error) {
	return getConversation(tx.tx, pubkey)
}

// BulkGetConversations reads many conversations inside the transaction.
func (tx *Tx) BulkGetConversations(pubkeys []string) (map[string]*Conversation, error) {
	return bulkGetConversations(tx.tx, pubkeys)
}

// InsertConversation adds a conversation unless it exists.
func (tx *Tx) InsertConversation(c *Conversation) (bool, error) {
	return insertConversation(tx.tx, c)
}

// PutConversation overwrites an existing conversation row.
func (tx *Tx) PutConversation(c *Conversation) error {
	return putConversation(tx.tx, c)
}

// SetLatest records the newest message of a conversation.
func (tx *Tx) SetLatest(pubkey, messageID string, status ledger.PaymentStatus, at int64) error {
	return setLatest(tx.tx, pubkey, messageID, status, at)
}

// IncrementUnread adds n to the unread counter.
func (tx *Tx) IncrementUnread(pubkey string, n int) error {
	return incrementUnread(tx.tx, pubkey, n)
}

// UpdateLatestStatus mirrors a message status onto its conversation.
func (tx *Tx) UpdateLatestStatus(pubkey, messageID string, status ledger.PaymentStatus) error {
	return updateLatestStatus(tx.tx, pubkey, messageID, status)
}
