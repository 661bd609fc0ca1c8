package classify

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/ledger/ledgertest"
	"github.com/matheus3301/lnchat/internal/store"
	"github.com/matheus3301/lnchat/internal/tlv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	self  = "02self"
	alice = "02alice"
)

func TestInvoiceValid(t *testing.T) {
	fake := ledgertest.New(self)
	inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "hi", Timestamp: 42})

	res := Invoice(context.Background(), fake, self, inv)
	require.Equal(t, Valid, res.Kind, res.Reason)
	assert.Equal(t, alice, res.Counterparty)
	assert.Equal(t, "hi", res.Fields.Content)
	assert.Equal(t, store.TypeText, res.Type)
	assert.Equal(t, int64(42), res.SentTimestamp)
	assert.Equal(t, base64.StdEncoding.EncodeToString(inv.RPreimage), res.ID)
}

func TestInvoiceTamperedSignatureNeverValid(t *testing.T) {
	fake := ledgertest.New(self)
	spec := ledgertest.MessageSpec{Sender: alice, Content: "pay me", Preimage: make([]byte, 32)}
	signed := fake.SignedInvoice(spec)
	sig := tlv.Decode(signed.HTLCs[0].CustomRecords).Signature

	tampered := []string{
		fake.Sign(alice, []byte("something else")), // signs a different payload
		fake.Sign("02mallory", tlv.SignedPayload(self, "1", "pay me")),
		"AAAA" + sig[4:],
	}
	for _, s := range tampered {
		f := tlv.Decode(signed.HTLCs[0].CustomRecords)
		f.Signature = s
		inv := ledgertest.InvoiceWithFields(spec, f)
		res := Invoice(context.Background(), fake, self, inv)
		assert.NotEqual(t, Valid, res.Kind, "signature %q", s)
	}
}

func TestInvoiceContentModifiedIsAnonymous(t *testing.T) {
	fake := ledgertest.New(self)
	inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "original"})
	inv.HTLCs[0].CustomRecords[tlv.MessageContent] = []byte("forged")

	res := Invoice(context.Background(), fake, self, inv)
	assert.Equal(t, Anonymous, res.Kind)
	assert.Equal(t, store.AnonPubkey, res.Counterparty)
	assert.Equal(t, "forged", res.Fields.Content)
	assert.Equal(t, ReasonBadSignature, res.Reason)
}

func TestInvoiceSignerMismatch(t *testing.T) {
	fake := ledgertest.New(self)
	inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "hi"})
	// Claim a different sender than the one who signed.
	inv.HTLCs[0].CustomRecords[tlv.SenderPubkey] = []byte("02bob")

	res := Invoice(context.Background(), fake, self, inv)
	assert.Equal(t, Anonymous, res.Kind)
	assert.Equal(t, ReasonSignerMismatch, res.Reason)
}

func TestInvoiceVerifyErrorFallsBackToAnonymous(t *testing.T) {
	fake := ledgertest.New(self)
	inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "hi"})
	fake.VerifyErr = errors.New("rpc unavailable")

	res := Invoice(context.Background(), fake, self, inv)
	assert.Equal(t, Anonymous, res.Kind)
	assert.Equal(t, ReasonVerifyError, res.Reason)
	assert.NotEmpty(t, res.ID)
}

func TestInvoiceMissingFields(t *testing.T) {
	fake := ledgertest.New(self)

	t.Run("no signature is anonymous", func(t *testing.T) {
		inv := fake.UnsignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "hi"})
		res := Invoice(context.Background(), fake, self, inv)
		assert.Equal(t, Anonymous, res.Kind)
		assert.Equal(t, ReasonIncomplete, res.Reason)
	})

	t.Run("no content is not a message", func(t *testing.T) {
		inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "hi"})
		delete(inv.HTLCs[0].CustomRecords, tlv.MessageContent)
		res := Invoice(context.Background(), fake, self, inv)
		assert.Equal(t, NotMessage, res.Kind)
		assert.Equal(t, ReasonNoContent, res.Reason)
	})

	t.Run("no preimage record falls back to invoice preimage", func(t *testing.T) {
		inv := fake.UnsignedInvoice(ledgertest.MessageSpec{Content: "hi"})
		delete(inv.HTLCs[0].CustomRecords, tlv.KeysendPreimage)
		res := Invoice(context.Background(), fake, self, inv)
		require.Equal(t, Anonymous, res.Kind)
		assert.Equal(t, base64.StdEncoding.EncodeToString(inv.RPreimage), res.ID)
	})

	t.Run("no preimage at all is not a message", func(t *testing.T) {
		inv := fake.UnsignedInvoice(ledgertest.MessageSpec{Content: "hi"})
		delete(inv.HTLCs[0].CustomRecords, tlv.KeysendPreimage)
		inv.RPreimage = nil
		res := Invoice(context.Background(), fake, self, inv)
		assert.Equal(t, NotMessage, res.Kind)
	})
}

func TestInvoiceNoSettledHTLC(t *testing.T) {
	fake := ledgertest.New(self)
	inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "hi"})
	inv.HTLCs[0].State = ledger.HTLCCanceled

	res := Invoice(context.Background(), fake, self, inv)
	assert.Equal(t, NotMessage, res.Kind)
	assert.Equal(t, ReasonNoSettledHTLC, res.Reason)
}

func TestInvoiceNotKeysend(t *testing.T) {
	fake := ledgertest.New(self)
	inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "hi"})
	inv.IsKeysend = false

	res := Invoice(context.Background(), fake, self, inv)
	assert.Equal(t, NotMessage, res.Kind)
}

func TestInvoiceSelfSenderRejected(t *testing.T) {
	fake := ledgertest.New(self)
	inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: self, Content: "loop"})

	res := Invoice(context.Background(), fake, self, inv)
	assert.Equal(t, NotMessage, res.Kind)
	assert.Equal(t, ReasonSelfSender, res.Reason)
}

func TestInvoiceUnknownContentTypeIsText(t *testing.T) {
	fake := ledgertest.New(self)
	inv := fake.SignedInvoice(ledgertest.MessageSpec{Sender: alice, Content: "hi", ContentType: "STICKER"})

	res := Invoice(context.Background(), fake, self, inv)
	require.Equal(t, Valid, res.Kind)
	assert.Equal(t, store.TypeText, res.Type)
}

func TestPayment(t *testing.T) {
	fake := ledgertest.New(self)

	t.Run("valid", func(t *testing.T) {
		p := fake.SentPayment(ledgertest.MessageSpec{Recipient: alice, Content: "yo", ContentType: "PAYMENT"})
		res := Payment(self, p)
		require.Equal(t, Valid, res.Kind, res.Reason)
		assert.Equal(t, alice, res.Counterparty)
		assert.Equal(t, store.TypePayment, res.Type)
	})

	t.Run("last hop is self", func(t *testing.T) {
		p := fake.SentPayment(ledgertest.MessageSpec{Recipient: self, Content: "yo"})
		res := Payment(self, p)
		assert.Equal(t, NotMessage, res.Kind)
		assert.Equal(t, ReasonSelfDestination, res.Reason)
	})

	t.Run("incomplete records", func(t *testing.T) {
		p := fake.SentPayment(ledgertest.MessageSpec{Recipient: alice, Content: "yo"})
		delete(p.HTLCs[0].Hops[1].CustomRecords, tlv.Signature)
		res := Payment(self, p)
		assert.Equal(t, NotMessage, res.Kind)
	})

	t.Run("no succeeded attempt", func(t *testing.T) {
		p := fake.SentPayment(ledgertest.MessageSpec{Recipient: alice, Content: "yo"})
		p.HTLCs[0].Status = ledger.AttemptFailed
		res := Payment(self, p)
		assert.Equal(t, NotMessage, res.Kind)
		assert.Equal(t, ReasonNoSucceededHop, res.Reason)
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "not_message", NotMessage.String())
}
