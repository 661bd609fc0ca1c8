package wire

import "encoding/json"

// Session

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Profile           string `json:"profile"`
	Status            string `json:"status"`
	StatusSinceUnixMs int64  `json:"status_since_unix_ms"`
	UptimeMs          int64  `json:"uptime_ms"`
	Pubkey            string `json:"pubkey,omitempty"`
	Locked            bool   `json:"locked"`
	Conversations     int    `json:"conversations"`
	Messages          int    `json:"messages"`
	InFlight          int    `json:"in_flight"`
	DroppedEvents     uint64 `json:"dropped_events"`
}

type UnlockRequest struct {
	Passphrase string `json:"passphrase"`
}

type LockRequest struct{}

type WatchEventsRequest struct {
	// Prefix filters event kinds, e.g. "message." or "warning.". Empty
	// receives everything.
	Prefix string `json:"prefix"`
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	Profile          string          `json:"profile"`
	OccurredAtUnixMs int64           `json:"occurred_at_unix_ms"`
	Kind             string          `json:"kind"`
	PayloadVersion   int             `json:"payload_version"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// Sync

type StartSyncRequest struct{}

type StartSyncResponse struct {
	Mode          string `json:"mode"`
	Invoices      int    `json:"invoices"`
	Payments      int    `json:"payments"`
	Conversations int    `json:"conversations"`
	Inserted      int    `json:"inserted"`
	Duplicates    int    `json:"duplicates"`
	Anonymous     int    `json:"anonymous"`
	Cursor        int64  `json:"cursor"`
}

type GetSyncStatusRequest struct{}

type GetSyncStatusResponse struct {
	Syncing           bool  `json:"syncing"`
	FirstSyncComplete bool  `json:"first_sync_complete"`
	Cursor            int64 `json:"cursor"`
}

// Chat

type Conversation struct {
	Pubkey              string `json:"pubkey"`
	Alias               string `json:"alias,omitempty"`
	Color               string `json:"color,omitempty"`
	UnreadCount         int    `json:"unread_count"`
	Blocked             string `json:"blocked"`
	Bookmarked          bool   `json:"bookmarked"`
	CharLimit           int    `json:"char_limit"`
	LatestMessageID     string `json:"latest_message_id,omitempty"`
	LatestMessageStatus string `json:"latest_message_status,omitempty"`
	LastUpdateTime      int64  `json:"last_update_time"`
}

type PageInfo struct {
	HasMore bool `json:"has_more"`
}

type ListConversationsRequest struct {
	Blocked        string `json:"blocked,omitempty"`
	BookmarkedOnly bool   `json:"bookmarked_only,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	PageInfo      PageInfo       `json:"page_info"`
}

type GetConversationRequest struct {
	Pubkey string `json:"pubkey"`
}

type AddConversationRequest struct {
	Pubkey string `json:"pubkey"`
}

type ConversationResponse struct {
	Conversation Conversation `json:"conversation"`
}

type AcknowledgeRequest struct {
	Pubkey string `json:"pubkey"`
}

type SetBlockedRequest struct {
	Pubkey  string `json:"pubkey"`
	Blocked bool   `json:"blocked"`
}

type SetBookmarkedRequest struct {
	Pubkey     string `json:"pubkey"`
	Bookmarked bool   `json:"bookmarked"`
}

type FocusRequest struct {
	// Pubkey is the open conversation; empty clears focus.
	Pubkey  string `json:"pubkey"`
	Visible bool   `json:"visible"`
}

type Empty struct{}

// Message

type Message struct {
	ID                string `json:"id"`
	Pubkey            string `json:"pubkey"`
	Text              string `json:"text"`
	Sealed            bool   `json:"sealed,omitempty"`
	Type              string `json:"type"`
	Signature         string `json:"signature,omitempty"`
	SentTimestamp     int64  `json:"sent_timestamp"`
	ReceivedTimestamp int64  `json:"received_timestamp"`
	Status            string `json:"status"`
	Amount            int64  `json:"amount"`
	Fee               *int64 `json:"fee,omitempty"`
	FailureReason     string `json:"failure_reason"`
	Self              bool   `json:"self"`
}

type ListMessagesRequest struct {
	Pubkey string `json:"pubkey"`
	// Before and BeforeID are the received timestamp (ns) and id of the
	// last message on the previous page. 0 starts at the newest message.
	Before   int64  `json:"before,omitempty"`
	BeforeID string `json:"before_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	PageInfo PageInfo  `json:"page_info"`
}

type SendMessageRequest struct {
	Pubkey string `json:"pubkey"`
	Text   string `json:"text"`
	// AmountSat > 0 sends a PAYMENT message.
	AmountSat int64 `json:"amount_sat,omitempty"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
	// Error is set when the message was stored but could not be signed or
	// dispatched.
	Error string `json:"error,omitempty"`
}
