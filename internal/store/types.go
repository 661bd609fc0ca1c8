package store

import "github.com/matheus3301/lnchat/internal/ledger"

// AnonPubkey is the reserved counterparty holding messages whose sender
// could not be verified. It is never resolved against the node directory.
const AnonPubkey = "ANON"

// DefaultCharLimit is the composer limit for new conversations.
const DefaultCharLimit = 300

// Blocked is the persisted tri-state block flag.
type Blocked string

const (
	BlockedTrue  Blocked = "true"
	BlockedFalse Blocked = "false"
	BlockedUnset Blocked = "unset"
)

// IsBlocked reports whether notifications for the counterparty are suppressed.
func (b Blocked) IsBlocked() bool { return b == BlockedTrue }

// MessageType is the content type carried in the protocol records.
type MessageType string

const (
	TypeText    MessageType = "TEXT"
	TypeImage   MessageType = "IMAGE"
	TypePayment MessageType = "PAYMENT"
)

// ParseMessageType maps a record value to a known type. Unknown or empty
// values fall back to TEXT.
func ParseMessageType(s string) MessageType {
	switch MessageType(s) {
	case TypeImage:
		return TypeImage
	case TypePayment:
		return TypePayment
	default:
		return TypeText
	}
}

// Conversation is one counterparty's thread summary. Empty Alias, Color and
// LatestMessageID are stored as NULL.
type Conversation struct {
	Pubkey              string
	Alias               string
	Color               string
	UnreadCount         int
	Blocked             Blocked
	Bookmarked          bool
	CharLimit           int
	LatestMessageID     string
	LatestMessageStatus ledger.PaymentStatus
	LastUpdateTime      int64 // ns
}

// NewConversation returns a conversation with default settings.
func NewConversation(pubkey string) *Conversation {
	return &Conversation{
		Pubkey:    pubkey,
		Blocked:   BlockedFalse,
		CharLimit: DefaultCharLimit,
	}
}

// Message is a stored message. The body is sealed; IV and Ciphertext come
// from the key vault.
type Message struct {
	ID                string
	Pubkey            string
	IV                []byte
	Ciphertext        []byte
	Signature         string
	Type              MessageType
	SentTimestamp     int64 // sender clock, ns, untrusted
	ReceivedTimestamp int64 // local clock, ns
	Status            ledger.PaymentStatus
	Amount            int64
	Fee               *int64
	FailureReason     ledger.FailureReason
	Self              bool
}

// MessageUpdate carries the outcome of an outbound send. Nil or empty fields
// are left unchanged.
type MessageUpdate struct {
	Status        ledger.PaymentStatus
	FailureReason ledger.FailureReason
	Fee           *int64
	Signature     string
}
