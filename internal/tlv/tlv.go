// Package tlv maps the message protocol onto keysend custom records.
//
// The record keys are a compatibility contract with existing peers and must
// never change.
package tlv

import (
	"encoding/base64"
	"fmt"
)

// Custom record keys.
const (
	KeysendPreimage uint64 = 5482373484
	SenderPubkey    uint64 = 34349339
	Timestamp       uint64 = 34349343
	MessageContent  uint64 = 34349334
	Signature       uint64 = 34349337
	ContentType     uint64 = 34349345
)

// Keys lists every protocol record key.
var Keys = []uint64{KeysendPreimage, SenderPubkey, Timestamp, MessageContent, Signature, ContentType}

// Name returns a readable name for a record key.
func Name(key uint64) string {
	switch key {
	case KeysendPreimage:
		return "preimage"
	case SenderPubkey:
		return "sender_pubkey"
	case Timestamp:
		return "timestamp"
	case MessageContent:
		return "content"
	case Signature:
		return "signature"
	case ContentType:
		return "content_type"
	default:
		return fmt.Sprintf("record_%d", key)
	}
}

// Fields is the decoded form of the six protocol records. Empty values mean
// the record was absent.
type Fields struct {
	Preimage     []byte
	SenderPubkey string // hex node key, carried as UTF-8 text
	Timestamp    string // sender clock in nanoseconds, decimal text
	Content      string
	Signature    string // zbase32 signature text as produced by SignMessage
	ContentType  string
}

// Decode reads the protocol fields out of a custom record map. Unknown keys
// are ignored.
func Decode(records map[uint64][]byte) Fields {
	var f Fields
	if v := records[KeysendPreimage]; len(v) > 0 {
		f.Preimage = append([]byte(nil), v...)
	}
	f.SenderPubkey = string(records[SenderPubkey])
	f.Timestamp = string(records[Timestamp])
	f.Content = string(records[MessageContent])
	if v := records[Signature]; len(v) > 0 {
		// Peers write the signature text into a base64 bytes field, so the
		// raw record is the base64 decoding of the zbase32 string.
		f.Signature = base64.StdEncoding.EncodeToString(v)
	}
	f.ContentType = string(records[ContentType])
	return f
}

// Encode builds the custom record map for an outbound message.
func Encode(f Fields) (map[uint64][]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(f.Signature)
	if err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}
	return map[uint64][]byte{
		KeysendPreimage: f.Preimage,
		SenderPubkey:    []byte(f.SenderPubkey),
		Timestamp:       []byte(f.Timestamp),
		MessageContent:  []byte(f.Content),
		Signature:       sig,
		ContentType:     []byte(f.ContentType),
	}, nil
}

// Missing returns the keys of absent records in protocol order.
func (f Fields) Missing() []uint64 {
	var out []uint64
	if len(f.Preimage) == 0 {
		out = append(out, KeysendPreimage)
	}
	if f.SenderPubkey == "" {
		out = append(out, SenderPubkey)
	}
	if f.Timestamp == "" {
		out = append(out, Timestamp)
	}
	if f.Content == "" {
		out = append(out, MessageContent)
	}
	if f.Signature == "" {
		out = append(out, Signature)
	}
	if f.ContentType == "" {
		out = append(out, ContentType)
	}
	return out
}

// Complete reports whether all six records are present.
func (f Fields) Complete() bool {
	return len(f.Missing()) == 0
}

// HasContent reports whether the message body record is present.
func (f Fields) HasContent() bool {
	return f.Content != ""
}

// ID returns the message id: the base64 encoding of the preimage.
func (f Fields) ID() string {
	if len(f.Preimage) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(f.Preimage)
}

// SignedPayload is the byte string a sender signs and a receiver verifies:
// the recipient's pubkey, the sender timestamp and the plaintext, concatenated.
func SignedPayload(recipientPubkey, timestamp, content string) []byte {
	return []byte(recipientPubkey + timestamp + content)
}
