// Package outbox sends messages as keysend payments and tracks their
// outcome.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/lnchat/internal/bus"
	"github.com/matheus3301/lnchat/internal/codec"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/store"
	lnsync "github.com/matheus3301/lnchat/internal/sync"
	"github.com/matheus3301/lnchat/internal/tlv"
	"github.com/matheus3301/lnchat/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrTooLong          = errors.New("message exceeds the conversation character limit")
	ErrInvalidRecipient = errors.New("recipient is not a node pubkey")
	ErrSelfRecipient    = errors.New("cannot send a message to yourself")
	ErrSignFailed       = errors.New("signing failed")
	ErrDispatchFailed   = errors.New("dispatch failed")
)

// Warning codes published by the sender.
const (
	WarnStore      = "store"
	WarnSignFailed = "sign_failed"
	WarnSendFailed = "send_failed"
)

// Defaults for dispatch.
const (
	DefaultAmountSat      = 1
	DefaultTimeoutSeconds = 60
	DefaultFeeLimitSat    = 10
)

// Options tunes dispatch.
type Options struct {
	FeeLimitSat    int64
	TimePref       float64
	TimeoutSeconds int32
	Now            func() time.Time
}

// Update is the payload of a message.updated event.
type Update struct {
	ID            string
	Pubkey        string
	Status        ledger.PaymentStatus
	FailureReason ledger.FailureReason
}

// Sender composes, signs and dispatches outbound messages.
type Sender struct {
	db     *store.DB
	ledger ledger.Ledger
	sealer lnsync.Sealer
	bus    *bus.Bus
	opts   Options
	logger *zap.Logger
}

// NewSender creates a new outbound sender.
func NewSender(db *store.DB, l ledger.Ledger, sealer lnsync.Sealer, b *bus.Bus, opts Options, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FeeLimitSat <= 0 {
		opts.FeeLimitSat = DefaultFeeLimitSat
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sender{
		db:     db,
		ledger: l,
		sealer: sealer,
		bus:    b,
		opts:   opts,
		logger: logger,
	}
}

// Send stores text as an IN_FLIGHT message to recipient, signs it and
// dispatches it. A positive amount makes it a PAYMENT message; otherwise it
// is TEXT carrying the minimum amount. The payment outcome arrives
// asynchronously and is recorded on the stored message.
//
// The returned message reflects the state when Send returns. It is non-nil
// whenever the message was composed, including after a signing or dispatch
// failure.
func (s *Sender) Send(ctx context.Context, recipient, text string, amount int64) (msg *store.Message, err error) {
	ctx, span := tracing.StartSpan(ctx, "outbox.send")
	defer func() { tracing.End(span, err) }()

	recipient = strings.ToLower(strings.TrimSpace(recipient))
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := codec.HexToBytes(recipient); err != nil || recipient == "" {
		return nil, ErrInvalidRecipient
	}
	self, err := s.ledger.IdentityPubkey(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity pubkey: %w", err)
	}
	if recipient == self {
		return nil, ErrSelfRecipient
	}
	if err := s.checkLimit(recipient, text); err != nil {
		return nil, err
	}

	typ := store.TypeText
	if amount > 0 {
		typ = store.TypePayment
	} else {
		amount = DefaultAmountSat
	}

	preimage, err := crypto.RandomBytes(crypto.PreimageSize)
	if err != nil {
		return nil, err
	}
	iv, ct, err := s.sealer.Encrypt([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("seal message: %w", err)
	}
	now := s.opts.Now()
	msg = &store.Message{
		ID:                codec.BytesToBase64(preimage),
		Pubkey:            recipient,
		IV:                iv,
		Ciphertext:        ct,
		Type:              typ,
		SentTimestamp:     now.UnixNano(),
		ReceivedTimestamp: now.UnixNano(),
		Status:            ledger.StatusInFlight,
		Amount:            amount,
		FailureReason:     ledger.FailureNone,
		Self:              true,
	}
	span.SetAttributes(attribute.String("message.id", msg.ID), attribute.String("message.type", string(typ)))

	// Composed.
	s.compose(ctx, msg)

	// Signed.
	ts := strconv.FormatInt(msg.SentTimestamp, 10)
	sig, err := s.ledger.SignMessage(ctx, tlv.SignedPayload(recipient, ts, text))
	if err != nil {
		s.logger.Error("failed to sign message", zap.String("id", msg.ID), zap.Error(err))
		s.fail(msg, ledger.FailureError, "")
		s.bus.Warn(WarnSignFailed, "Could not sign the message.", recipient)
		return msg, fmt.Errorf("%w: %v", ErrSignFailed, err)
	}
	msg.Signature = sig

	records, err := tlv.Encode(tlv.Fields{
		Preimage:     preimage,
		SenderPubkey: self,
		Timestamp:    ts,
		Content:      text,
		Signature:    sig,
		ContentType:  string(typ),
	})
	if err != nil {
		s.logger.Error("failed to encode records", zap.String("id", msg.ID), zap.Error(err))
		s.fail(msg, ledger.FailureError, sig)
		s.bus.Warn(WarnSignFailed, "Could not sign the message.", recipient)
		return msg, fmt.Errorf("%w: %v", ErrSignFailed, err)
	}

	// Dispatched.
	req := ledger.SendRequest{
		Dest:              recipient,
		AmountSat:         amount,
		PaymentHash:       crypto.Hash(preimage),
		CustomRecords:     records,
		TimeoutSeconds:    s.opts.TimeoutSeconds,
		FeeLimitSat:       s.opts.FeeLimitSat,
		TimePref:          s.opts.TimePref,
		AllowSelfPayment:  false,
		NoInflightUpdates: true,
	}
	id, pubkey := msg.ID, msg.Pubkey
	err = s.ledger.SendPayment(ctx, req,
		func(p ledger.Payment) { s.onUpdate(id, pubkey, sig, p) },
		func(err error) { s.onError(id, pubkey, sig, err) },
	)
	if err != nil {
		s.logger.Error("failed to dispatch payment", zap.String("id", msg.ID), zap.Error(err))
		s.fail(msg, ledger.FailureError, sig)
		s.bus.Warn(WarnSendFailed, "Could not send the message.", recipient)
		return msg, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	s.logger.Info("message dispatched",
		zap.String("id", msg.ID),
		zap.String("pubkey", recipient),
		zap.Int64("amount_sat", amount),
	)
	return msg, nil
}

func (s *Sender) checkLimit(recipient, text string) error {
	limit := store.DefaultCharLimit
	conv, err := s.db.GetConversation(recipient)
	if err != nil {
		s.logger.Warn("failed to read conversation", zap.String("pubkey", recipient), zap.Error(err))
	} else if conv != nil && conv.CharLimit > 0 {
		limit = conv.CharLimit
	}
	if utf8.RuneCountInString(text) > limit {
		return ErrTooLong
	}
	return nil
}

// compose persists the IN_FLIGHT message and points the conversation at it.
func (s *Sender) compose(ctx context.Context, msg *store.Message) {
	created := false
	err := s.db.Update(ctx, "compose message", func(tx *store.Tx) error {
		if _, err := tx.InsertMessage(msg); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		ok, err := tx.InsertConversation(store.NewConversation(msg.Pubkey))
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		created = ok
		return tx.SetLatest(msg.Pubkey, msg.ID, msg.Status, msg.ReceivedTimestamp)
	})
	if err != nil {
		s.logger.Error("failed to store outbound message", zap.String("id", msg.ID), zap.Error(err))
		s.bus.Warn(WarnStore, "Could not save the outgoing message.", msg.Pubkey)
		return
	}
	if created {
		s.bus.Emit(bus.KindConversationAdded, msg.Pubkey)
	}
	s.bus.Emit(bus.KindMessageStored, Update{ID: msg.ID, Pubkey: msg.Pubkey, Status: msg.Status})
}

func (s *Sender) fail(msg *store.Message, reason ledger.FailureReason, sig string) {
	msg.Status = ledger.StatusFailed
	msg.FailureReason = reason
	if sig != "" {
		msg.Signature = sig
	}
	s.record(msg.ID, msg.Pubkey, store.MessageUpdate{
		Status:        ledger.StatusFailed,
		FailureReason: reason,
		Signature:     sig,
	})
}

func (s *Sender) onUpdate(id, pubkey, sig string, p ledger.Payment) {
	switch p.Status {
	case ledger.StatusSucceeded:
		fee := p.FeeSat
		s.logger.Info("message delivered", zap.String("id", id), zap.Int64("fee_sat", fee))
		s.record(id, pubkey, store.MessageUpdate{
			Status:    ledger.StatusSucceeded,
			Fee:       &fee,
			Signature: sig,
		})
	case ledger.StatusFailed:
		s.logger.Warn("message delivery failed", zap.String("id", id), zap.String("reason", string(p.FailureReason)))
		s.record(id, pubkey, store.MessageUpdate{
			Status:        ledger.StatusFailed,
			FailureReason: p.FailureReason,
			Signature:     sig,
		})
		s.bus.Warn(WarnSendFailed, failureText(p.FailureReason), pubkey)
	}
}

func (s *Sender) onError(id, pubkey, sig string, err error) {
	if ledger.IsStreamClosed(err) {
		return
	}
	s.logger.Error("payment stream failed", zap.String("id", id), zap.Error(err))
	s.record(id, pubkey, store.MessageUpdate{
		Status:        ledger.StatusFailed,
		FailureReason: ledger.FailureError,
		Signature:     sig,
	})
	s.bus.Warn(WarnSendFailed, "Could not send the message.", pubkey)
}

// record applies u to the message and mirrors the status onto the
// conversation when the message is still its latest.
func (s *Sender) record(id, pubkey string, u store.MessageUpdate) {
	err := s.db.Update(context.Background(), "record send outcome", func(tx *store.Tx) error {
		if _, err := tx.UpdateMessage(id, u); err != nil {
			return fmt.Errorf("update message: %w", err)
		}
		return tx.UpdateLatestStatus(pubkey, id, u.Status)
	})
	if err != nil {
		s.logger.Error("failed to record send outcome", zap.String("id", id), zap.Error(err))
		s.bus.Warn(WarnStore, "Could not save the message status.", pubkey)
		return
	}
	s.bus.Emit(bus.KindMessageUpdated, Update{ID: id, Pubkey: pubkey, Status: u.Status, FailureReason: u.FailureReason})
}

func failureText(r ledger.FailureReason) string {
	switch r {
	case ledger.FailureTimeout:
		return "Message timed out."
	case ledger.FailureNoRoute:
		return "No route to the recipient."
	case ledger.FailureInsufficientBalance:
		return "Insufficient balance to send the message."
	case ledger.FailureIncorrectPaymentDetails:
		return "The recipient rejected the message."
	default:
		return "Could not send the message."
	}
}
