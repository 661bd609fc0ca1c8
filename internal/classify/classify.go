// Package classify decides whether a settled ledger event carries a protocol
// message and how far its sender can be trusted.
//
// Classification is pure apart from the signature check. Any failure while
// verifying downgrades trust rather than aborting, so one malformed event
// never stops a scan.
package classify

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/store"
	"github.com/matheus3301/lnchat/internal/tlv"
)

// Kind is the trust tier of a classified event.
type Kind int

const (
	// NotMessage events are skipped; only the sync cursor moves past them.
	NotMessage Kind = iota
	// Anonymous messages have content but an unverifiable sender. They are
	// stored under store.AnonPubkey.
	Anonymous
	// Valid messages carry a signature from the asserted sender.
	Valid
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Anonymous:
		return "anonymous"
	default:
		return "not_message"
	}
}

// Reasons reported in Result.Reason.
const (
	ReasonNoSettledHTLC   = "no settled htlc"
	ReasonNotKeysend      = "not keysend"
	ReasonNoContent       = "no content"
	ReasonNoPreimage      = "no preimage"
	ReasonSelfSender      = "sender is self"
	ReasonIncomplete      = "incomplete records"
	ReasonVerifyError     = "verification error"
	ReasonBadSignature    = "signature invalid"
	ReasonSignerMismatch  = "signer does not match sender"
	ReasonNoSucceededHop  = "no succeeded route"
	ReasonSelfDestination = "last hop is self"
)

// Verifier checks node signatures.
type Verifier interface {
	VerifyMessage(ctx context.Context, msg []byte, signature string) (ledger.Verification, error)
}

// Result is the outcome of classifying one event.
type Result struct {
	Kind Kind
	// Counterparty is the conversation the message belongs to: the verified
	// sender, store.AnonPubkey, or for payments the destination node.
	Counterparty  string
	ID            string
	Fields        tlv.Fields
	Type          store.MessageType
	SentTimestamp int64
	Reason        string
}

// IsMessage reports whether the event should be stored.
func (r Result) IsMessage() bool {
	return r.Kind != NotMessage
}

func notMessage(reason string) Result {
	return Result{Kind: NotMessage, Reason: reason}
}

// Invoice classifies a received invoice. self is the local node pubkey,
// which is also the recipient the sender signed for.
func Invoice(ctx context.Context, v Verifier, self string, inv ledger.Invoice) Result {
	htlc, ok := inv.SettledHTLC()
	if !ok {
		return notMessage(ReasonNoSettledHTLC)
	}
	if !inv.IsKeysend {
		return notMessage(ReasonNotKeysend)
	}

	f := tlv.Decode(htlc.CustomRecords)
	if !f.HasContent() {
		return notMessage(ReasonNoContent)
	}
	if f.SenderPubkey != "" && f.SenderPubkey == self {
		return notMessage(ReasonSelfSender)
	}

	if !f.Complete() {
		return anonymous(f, inv, ReasonIncomplete)
	}

	payload := tlv.SignedPayload(self, f.Timestamp, f.Content)
	res, err := v.VerifyMessage(ctx, payload, f.Signature)
	switch {
	case err != nil:
		return anonymous(f, inv, ReasonVerifyError)
	case !res.Valid:
		return anonymous(f, inv, ReasonBadSignature)
	case res.Pubkey != f.SenderPubkey:
		return anonymous(f, inv, ReasonSignerMismatch)
	}

	return Result{
		Kind:          Valid,
		Counterparty:  f.SenderPubkey,
		ID:            f.ID(),
		Fields:        f,
		Type:          store.ParseMessageType(f.ContentType),
		SentTimestamp: parseTimestamp(f.Timestamp),
	}
}

func anonymous(f tlv.Fields, inv ledger.Invoice, reason string) Result {
	id := f.ID()
	if id == "" && len(inv.RPreimage) > 0 {
		id = base64.StdEncoding.EncodeToString(inv.RPreimage)
	}
	if id == "" {
		return notMessage(ReasonNoPreimage)
	}
	return Result{
		Kind:          Anonymous,
		Counterparty:  store.AnonPubkey,
		ID:            id,
		Fields:        f,
		Type:          store.ParseMessageType(f.ContentType),
		SentTimestamp: parseTimestamp(f.Timestamp),
		Reason:        reason,
	}
}

// Payment classifies an outgoing payment. Payments are self-authored, so
// only structural completeness is checked. The counterparty is the last hop
// of the succeeded route; a last hop equal to self is treated as a payment
// to ourselves and skipped. Multi-hop circular payments can defeat that
// check.
func Payment(self string, p ledger.Payment) Result {
	hop, ok := p.LastHop()
	if !ok {
		return notMessage(ReasonNoSucceededHop)
	}
	f := tlv.Decode(hop.CustomRecords)
	if !f.Complete() {
		return notMessage(ReasonIncomplete)
	}
	if hop.PubKey == self {
		return notMessage(ReasonSelfDestination)
	}
	return Result{
		Kind:          Valid,
		Counterparty:  hop.PubKey,
		ID:            f.ID(),
		Fields:        f,
		Type:          store.ParseMessageType(f.ContentType),
		SentTimestamp: parseTimestamp(f.Timestamp),
	}
}

func parseTimestamp(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
