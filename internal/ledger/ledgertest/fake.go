// Package ledgertest provides an in-memory ledger.Ledger for tests.
package ledgertest

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/matheus3301/lnchat/internal/ledger"
)

type signed struct {
	pubkey string
	msg    string
}

// Fake is an in-memory ledger. Zero values of the error fields mean success.
type Fake struct {
	mu sync.Mutex

	Self     string
	Invoices []ledger.Invoice
	Payments []ledger.Payment
	Nodes    map[string]ledger.NodeInfo

	ListErr   error
	LookupErr error
	SignErr   error
	VerifyErr error
	SendErr   error

	// SendResult is delivered to onUpdate for every dispatch unless
	// SendStreamErr is set, in which case onError receives that instead.
	SendResult    *ledger.Payment
	SendStreamErr error

	Sent    []ledger.SendRequest
	Lookups []string

	identityErr error
	signatures  map[string]signed
	onEvent     func(ledger.Invoice)
	onError     func(error)
	closed      bool
}

// New returns a fake node identified by self.
func New(self string) *Fake {
	return &Fake{
		Self:       self,
		Nodes:      make(map[string]ledger.NodeInfo),
		signatures: make(map[string]signed),
	}
}

// Sign produces a signature over msg attributed to pubkey and registers it
// so VerifyMessage recovers pubkey. It lets tests act as remote peers.
func (f *Fake) Sign(pubkey string, msg []byte) string {
	sum := sha256.Sum256(append([]byte(pubkey+"|"), msg...))
	sig := base64.StdEncoding.EncodeToString(sum[:])
	f.mu.Lock()
	f.signatures[sig] = signed{pubkey: pubkey, msg: string(msg)}
	f.mu.Unlock()
	return sig
}

// SetIdentityErr makes IdentityPubkey fail, simulating an unreachable node.
// It is safe to call while the fake is in use.
func (f *Fake) SetIdentityErr(err error) {
	f.mu.Lock()
	f.identityErr = err
	f.mu.Unlock()
}

func (f *Fake) IdentityPubkey(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identityErr != nil {
		return "", f.identityErr
	}
	return f.Self, nil
}

func (f *Fake) ListInvoices(ctx context.Context, since time.Time) ([]ledger.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []ledger.Invoice
	for _, inv := range f.Invoices {
		if !since.IsZero() && inv.CreationDate < since.Unix() {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (f *Fake) ListPayments(ctx context.Context, since time.Time) ([]ledger.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []ledger.Payment
	for _, p := range f.Payments {
		if !since.IsZero() && p.CreationTimeNs < since.UnixNano() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *Fake) SubscribeInvoices(ctx context.Context, onEvent func(ledger.Invoice), onError func(error)) (ledger.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEvent = onEvent
	f.onError = onError
	f.closed = false
	return f, nil
}

// Close ends the subscription.
func (f *Fake) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Emit delivers inv to the active subscription. It reports false when no
// subscription is attached.
func (f *Fake) Emit(inv ledger.Invoice) bool {
	f.mu.Lock()
	cb, closed := f.onEvent, f.closed
	f.mu.Unlock()
	if cb == nil || closed {
		return false
	}
	cb(inv)
	return true
}

// EmitError delivers err to the active subscription's error callback.
func (f *Fake) EmitError(err error) bool {
	f.mu.Lock()
	cb, closed := f.onError, f.closed
	f.mu.Unlock()
	if cb == nil || closed {
		return false
	}
	cb(err)
	return true
}

func (f *Fake) LookupNode(ctx context.Context, pubkey string) (ledger.NodeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lookups = append(f.Lookups, pubkey)
	if f.LookupErr != nil {
		return ledger.NodeInfo{}, f.LookupErr
	}
	info, ok := f.Nodes[pubkey]
	if !ok {
		return ledger.NodeInfo{}, ledger.ErrNodeNotFound
	}
	return info, nil
}

func (f *Fake) SignMessage(ctx context.Context, msg []byte) (string, error) {
	if f.SignErr != nil {
		return "", f.SignErr
	}
	return f.Sign(f.Self, msg), nil
}

func (f *Fake) VerifyMessage(ctx context.Context, msg []byte, signature string) (ledger.Verification, error) {
	if f.VerifyErr != nil {
		return ledger.Verification{}, f.VerifyErr
	}
	if _, err := base64.StdEncoding.DecodeString(signature); err != nil {
		return ledger.Verification{}, errors.New("malformed signature")
	}
	f.mu.Lock()
	s, ok := f.signatures[signature]
	f.mu.Unlock()
	if !ok || s.msg != string(msg) {
		return ledger.Verification{Valid: false}, nil
	}
	return ledger.Verification{Valid: true, Pubkey: s.pubkey}, nil
}

func (f *Fake) SendPayment(ctx context.Context, req ledger.SendRequest, onUpdate func(ledger.Payment), onError func(error)) error {
	f.mu.Lock()
	if f.SendErr != nil {
		f.mu.Unlock()
		return f.SendErr
	}
	f.Sent = append(f.Sent, req)
	result, streamErr := f.SendResult, f.SendStreamErr
	f.mu.Unlock()

	switch {
	case streamErr != nil:
		onError(streamErr)
	case result != nil:
		onUpdate(*result)
	}
	return nil
}

// SentCount returns the number of dispatched payments.
func (f *Fake) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

var _ ledger.Ledger = (*Fake)(nil)
