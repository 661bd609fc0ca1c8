package ledgertest

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/tlv"
)

// MessageSpec describes a protocol message for the builders. Zero fields
// get defaults.
type MessageSpec struct {
	Sender       string
	Recipient    string // defaults to the fake's own pubkey for invoices
	Content      string
	ContentType  string // defaults to TEXT
	Timestamp    int64  // sender ns, defaults to now
	AmountSat    int64  // defaults to 1
	CreationDate int64  // unix seconds, defaults to now
	Preimage     []byte // defaults to random
}

func (s *MessageSpec) defaults(self string) {
	if s.Recipient == "" {
		s.Recipient = self
	}
	if s.ContentType == "" {
		s.ContentType = "TEXT"
	}
	if s.Timestamp == 0 {
		s.Timestamp = time.Now().UnixNano()
	}
	if s.AmountSat == 0 {
		s.AmountSat = 1
	}
	if s.CreationDate == 0 {
		s.CreationDate = time.Now().Unix()
	}
	if len(s.Preimage) == 0 {
		s.Preimage = make([]byte, 32)
		_, _ = rand.Read(s.Preimage)
	}
}

// Fields builds the record values for spec with the given signature.
func Fields(spec MessageSpec, signature string) tlv.Fields {
	return tlv.Fields{
		Preimage:     spec.Preimage,
		SenderPubkey: spec.Sender,
		Timestamp:    strconv.FormatInt(spec.Timestamp, 10),
		Content:      spec.Content,
		Signature:    signature,
		ContentType:  spec.ContentType,
	}
}

// InvoiceWithFields builds a settled keysend invoice carrying f.
func InvoiceWithFields(spec MessageSpec, f tlv.Fields) ledger.Invoice {
	records, err := tlv.Encode(f)
	if err != nil {
		panic(err)
	}
	for k, v := range records {
		if len(v) == 0 {
			delete(records, k)
		}
	}
	return ledger.Invoice{
		IsKeysend:    true,
		RPreimage:    spec.Preimage,
		CreationDate: spec.CreationDate,
		SettleDate:   spec.CreationDate,
		AmtPaidSat:   spec.AmountSat,
		Settled:      true,
		HTLCs: []ledger.InvoiceHTLC{{
			State:         ledger.HTLCSettled,
			AmtMsat:       uint64(spec.AmountSat) * 1000,
			CustomRecords: records,
		}},
	}
}

// SignedInvoice builds a settled keysend invoice from spec.Sender, signed
// so that VerifyMessage on this fake accepts it.
func (f *Fake) SignedInvoice(spec MessageSpec) ledger.Invoice {
	spec.defaults(f.Self)
	ts := strconv.FormatInt(spec.Timestamp, 10)
	sig := f.Sign(spec.Sender, tlv.SignedPayload(spec.Recipient, ts, spec.Content))
	return InvoiceWithFields(spec, Fields(spec, sig))
}

// UnsignedInvoice builds an invoice whose signature record is absent.
func (f *Fake) UnsignedInvoice(spec MessageSpec) ledger.Invoice {
	spec.defaults(f.Self)
	return InvoiceWithFields(spec, Fields(spec, ""))
}

// SentPayment builds a succeeded keysend payment from the fake's node to
// spec.Recipient.
func (f *Fake) SentPayment(spec MessageSpec) ledger.Payment {
	spec.Sender = f.Self
	spec.defaults("")
	ts := strconv.FormatInt(spec.Timestamp, 10)
	sig := f.Sign(f.Self, tlv.SignedPayload(spec.Recipient, ts, spec.Content))
	records, err := tlv.Encode(Fields(spec, sig))
	if err != nil {
		panic(err)
	}
	hash := sha256.Sum256(spec.Preimage)
	return ledger.Payment{
		PaymentHash:    hex.EncodeToString(hash[:]),
		ValueSat:       spec.AmountSat,
		FeeSat:         0,
		CreationTimeNs: spec.CreationDate * int64(time.Second),
		Status:         ledger.StatusSucceeded,
		FailureReason:  ledger.FailureNone,
		HTLCs: []ledger.HTLCAttempt{{
			Status: ledger.AttemptSucceeded,
			Hops: []ledger.Hop{
				{PubKey: "03routingnode"},
				{PubKey: spec.Recipient, CustomRecords: records},
			},
		}},
	}
}
