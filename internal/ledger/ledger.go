// Package ledger defines the node capability the messaging engine consumes:
// settled invoice and payment history, the settlement stream, the node
// directory, message signing and keysend dispatch.
//
// The lnd subpackage implements it over gRPC; ledgertest provides an
// in-memory fake.
package ledger

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	// ErrLostConnection marks a transport failure the node connection is
	// expected to recover from.
	ErrLostConnection = errors.New("lost connection")
	// ErrNodeNotFound is returned by LookupNode for unknown pubkeys.
	ErrNodeNotFound = errors.New("node not found")
)

// IsLostConnection reports whether err signals a recoverable disconnect.
func IsLostConnection(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrLostConnection) || strings.Contains(err.Error(), "lost connection")
}

// IsStreamClosed reports whether err is the benign end-of-stream signal.
func IsStreamClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) || err.Error() == "EOF"
}

// PaymentStatus mirrors the node's payment status names.
type PaymentStatus string

const (
	StatusUnknown   PaymentStatus = "UNKNOWN"
	StatusInFlight  PaymentStatus = "IN_FLIGHT"
	StatusSucceeded PaymentStatus = "SUCCEEDED"
	StatusFailed    PaymentStatus = "FAILED"
)

// FailureReason mirrors the node's payment failure reason names.
type FailureReason string

const (
	FailureNone                    FailureReason = "FAILURE_REASON_NONE"
	FailureTimeout                 FailureReason = "FAILURE_REASON_TIMEOUT"
	FailureNoRoute                 FailureReason = "FAILURE_REASON_NO_ROUTE"
	FailureError                   FailureReason = "FAILURE_REASON_ERROR"
	FailureIncorrectPaymentDetails FailureReason = "FAILURE_REASON_INCORRECT_PAYMENT_DETAILS"
	FailureInsufficientBalance     FailureReason = "FAILURE_REASON_INSUFFICIENT_BALANCE"
	FailureCanceled                FailureReason = "FAILURE_REASON_CANCELED"
)

// HTLCState is the settlement state of one HTLC paying an invoice.
type HTLCState int

const (
	HTLCAccepted HTLCState = iota
	HTLCSettled
	HTLCCanceled
)

// InvoiceHTLC is one HTLC that paid (part of) an invoice.
type InvoiceHTLC struct {
	State         HTLCState
	AmtMsat       uint64
	CustomRecords map[uint64][]byte
}

// Invoice is a received payment.
type Invoice struct {
	AddIndex     uint64
	IsKeysend    bool
	RPreimage    []byte
	CreationDate int64 // unix seconds
	SettleDate   int64 // unix seconds
	AmtPaidSat   int64
	Settled      bool
	HTLCs        []InvoiceHTLC
}

// SettledHTLC returns the first settled HTLC, if any.
func (inv Invoice) SettledHTLC() (InvoiceHTLC, bool) {
	for _, h := range inv.HTLCs {
		if h.State == HTLCSettled {
			return h, true
		}
	}
	return InvoiceHTLC{}, false
}

// AttemptStatus is the state of one payment attempt.
type AttemptStatus int

const (
	AttemptInFlight AttemptStatus = iota
	AttemptSucceeded
	AttemptFailed
)

// Hop is one hop of a payment route.
type Hop struct {
	PubKey        string
	CustomRecords map[uint64][]byte
}

// HTLCAttempt is one route attempt of an outgoing payment.
type HTLCAttempt struct {
	Status AttemptStatus
	Hops   []Hop
}

// Payment is an outgoing payment.
type Payment struct {
	PaymentHash    string
	ValueSat       int64
	FeeSat         int64
	CreationTimeNs int64
	Status         PaymentStatus
	FailureReason  FailureReason
	HTLCs          []HTLCAttempt
}

// LastHop returns the final hop of the first successful attempt.
func (p Payment) LastHop() (Hop, bool) {
	for _, a := range p.HTLCs {
		if a.Status != AttemptSucceeded || len(a.Hops) == 0 {
			continue
		}
		return a.Hops[len(a.Hops)-1], true
	}
	return Hop{}, false
}

// NodeInfo is the public directory entry of a node.
type NodeInfo struct {
	Alias string
	Color string
}

// Verification is the outcome of VerifyMessage.
type Verification struct {
	Valid  bool
	Pubkey string
}

// SendRequest describes a keysend dispatch.
type SendRequest struct {
	Dest              string // hex pubkey
	AmountSat         int64
	PaymentHash       []byte
	CustomRecords     map[uint64][]byte
	TimeoutSeconds    int32
	FeeLimitSat       int64
	TimePref          float64
	AllowSelfPayment  bool
	NoInflightUpdates bool
}

// Subscription is a handle on a running settlement stream.
type Subscription interface {
	Close()
}

// Ledger is the node capability.
type Ledger interface {
	// IdentityPubkey returns the local node's hex pubkey.
	IdentityPubkey(ctx context.Context) (string, error)
	// ListInvoices returns invoices created at or after since. A zero since
	// lists all history.
	ListInvoices(ctx context.Context, since time.Time) ([]Invoice, error)
	// ListPayments returns completed payments created at or after since.
	ListPayments(ctx context.Context, since time.Time) ([]Payment, error)
	// SubscribeInvoices streams invoice updates until the subscription is
	// closed or ctx is done. Callbacks run on the stream goroutine.
	SubscribeInvoices(ctx context.Context, onEvent func(Invoice), onError func(error)) (Subscription, error)
	LookupNode(ctx context.Context, pubkey string) (NodeInfo, error)
	// SignMessage signs msg with the node key and returns the zbase32 text.
	SignMessage(ctx context.Context, msg []byte) (string, error)
	VerifyMessage(ctx context.Context, msg []byte, signature string) (Verification, error)
	// SendPayment dispatches asynchronously. onUpdate receives payment
	// updates, onError receives stream errors, including the benign EOF at
	// stream end.
	SendPayment(ctx context.Context, req SendRequest, onUpdate func(Payment), onError func(error)) error
}

// Since converts a cursor in unix seconds to a lower bound for List calls.
func Since(unixSeconds int64) time.Time {
	if unixSeconds <= 0 {
		return time.Time{}
	}
	return time.Unix(unixSeconds, 0)
}
