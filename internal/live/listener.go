// Package live stores messages as they arrive on the node's invoice
// subscription and raises notifications for them.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/lnchat/internal/bus"
	"github.com/matheus3301/lnchat/internal/classify"
	"github.com/matheus3301/lnchat/internal/codec"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/status"
	"github.com/matheus3301/lnchat/internal/store"
	lnsync "github.com/matheus3301/lnchat/internal/sync"
	"github.com/matheus3301/lnchat/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Warning codes published by the listener.
const (
	WarnStore         = "store"
	WarnReconnecting  = "reconnecting"
	WarnReceiveFailed = "receive_failed"
)

// Notification is the payload of a notify.message event.
type Notification struct {
	Pubkey    string
	MessageID string
	Title     string
	Body      string
}

// Stored is the payload of a message.stored event.
type Stored struct {
	ID     string
	Pubkey string
	Self   bool
}

// Options tunes a listener.
type Options struct {
	// Mute suppresses notifications. Messages are still stored.
	Mute bool
	Now  func() time.Time
	// RetryMin and RetryMax bound the resubscribe backoff after the node
	// connection drops.
	RetryMin time.Duration
	RetryMax time.Duration
	// OnReconnect runs after the subscription is re-established.
	OnReconnect func(ctx context.Context)
}

// Listener consumes the invoice subscription.
type Listener struct {
	db       *store.DB
	ledger   ledger.Ledger
	sealer   lnsync.Sealer
	presence lnsync.ActiveChecker
	status   *status.Machine
	recon    *lnsync.Reconciler
	bus      *bus.Bus
	opts     Options
	logger   *zap.Logger

	mu           sync.Mutex
	self         string
	sub          ledger.Subscription
	ctx          context.Context
	reconnecting bool
}

// NewListener creates a listener. presence and machine may be nil.
func NewListener(db *store.DB, l ledger.Ledger, sealer lnsync.Sealer, presence lnsync.ActiveChecker,
	machine *status.Machine, b *bus.Bus, opts Options, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryMin <= 0 {
		opts.RetryMin = time.Second
	}
	if opts.RetryMax < opts.RetryMin {
		opts.RetryMax = 30 * time.Second
	}
	return &Listener{
		db:       db,
		ledger:   l,
		sealer:   sealer,
		presence: presence,
		status:   machine,
		recon:    lnsync.NewReconciler(db, logger),
		bus:      b,
		opts:     opts,
		logger:   logger,
	}
}

// Start attaches to the invoice subscription. It runs until ctx is done or
// Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	self, err := l.ledger.IdentityPubkey(ctx)
	if err != nil {
		return fmt.Errorf("identity pubkey: %w", err)
	}
	l.mu.Lock()
	l.self = self
	l.ctx = ctx
	l.mu.Unlock()
	return l.subscribe(ctx)
}

func (l *Listener) subscribe(ctx context.Context) error {
	sub, err := l.ledger.SubscribeInvoices(ctx,
		func(inv ledger.Invoice) { l.handleInvoice(ctx, inv) },
		l.handleError,
	)
	if err != nil {
		return fmt.Errorf("subscribe invoices: %w", err)
	}
	l.mu.Lock()
	l.sub = sub
	l.mu.Unlock()
	l.logger.Info("invoice subscription attached")
	return nil
}

// Stop detaches from the subscription.
func (l *Listener) Stop() {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (l *Listener) handleInvoice(ctx context.Context, inv ledger.Invoice) {
	ctx, span := tracing.StartSpan(ctx, "live.invoice", attribute.Int64("invoice.add_index", int64(inv.AddIndex)))
	var err error
	defer func() { tracing.End(span, err) }()

	defer func() {
		if cerr := l.recon.AdvanceCursor(inv.CreationDate + 1); cerr != nil {
			l.logger.Warn("failed to advance cursor", zap.Error(cerr))
		}
	}()

	l.mu.Lock()
	self := l.self
	l.mu.Unlock()

	res := classify.Invoice(ctx, l.ledger, self, inv)
	span.SetAttributes(attribute.String("message.kind", res.Kind.String()))
	if !res.IsMessage() {
		return
	}

	msg, err := l.buildMessage(res, inv)
	if err != nil {
		l.logger.Warn("failed to seal message", zap.String("id", res.ID), zap.Error(err))
		l.bus.Warn(WarnStore, "Could not store an incoming message.", res.Counterparty)
		return
	}

	info := l.lookup(ctx, res.Counterparty)
	conv, inserted, created, err := l.persist(ctx, msg, info)
	if err != nil {
		l.logger.Error("failed to store message", zap.String("id", msg.ID), zap.Error(err))
		l.bus.Warn(WarnStore, "Could not store an incoming message.", res.Counterparty)
		return
	}
	if !inserted {
		l.logger.Debug("duplicate message", zap.String("id", msg.ID))
		return
	}

	l.logger.Info("message received",
		zap.String("id", msg.ID),
		zap.String("pubkey", msg.Pubkey),
		zap.String("kind", res.Kind.String()),
	)
	if created {
		l.bus.Emit(bus.KindConversationAdded, conv.Pubkey)
	}
	l.bus.Emit(bus.KindMessageStored, Stored{ID: msg.ID, Pubkey: msg.Pubkey})
	l.notify(conv, msg, res.Fields.Content)
}

func (l *Listener) buildMessage(res classify.Result, inv ledger.Invoice) (*store.Message, error) {
	iv, ct, err := l.sealer.Encrypt([]byte(res.Fields.Content))
	if err != nil {
		return nil, err
	}
	return &store.Message{
		ID:                res.ID,
		Pubkey:            res.Counterparty,
		IV:                iv,
		Ciphertext:        ct,
		Signature:         res.Fields.Signature,
		Type:              res.Type,
		SentTimestamp:     res.SentTimestamp,
		ReceivedTimestamp: l.opts.Now().UnixNano(),
		Status:            ledger.StatusSucceeded,
		Amount:            inv.AmtPaidSat,
		FailureReason:     ledger.FailureNone,
	}, nil
}

func (l *Listener) lookup(ctx context.Context, pubkey string) ledger.NodeInfo {
	if pubkey == store.AnonPubkey {
		return ledger.NodeInfo{}
	}
	info, err := l.ledger.LookupNode(ctx, pubkey)
	if err != nil {
		l.logger.Debug("node lookup failed", zap.String("pubkey", pubkey), zap.Error(err))
		return ledger.NodeInfo{}
	}
	return info
}

// persist upserts the conversation and inserts the message in one
// transaction.
func (l *Listener) persist(ctx context.Context, msg *store.Message, info ledger.NodeInfo) (conv *store.Conversation, inserted, created bool, err error) {
	err = l.db.Update(ctx, "live persist", func(tx *store.Tx) error {
		created = false
		inserted, err = tx.InsertMessage(msg)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		conv, err = tx.GetConversation(msg.Pubkey)
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		if conv == nil {
			conv = store.NewConversation(msg.Pubkey)
			created = true
		}
		if info.Alias != "" {
			conv.Alias = info.Alias
		}
		if info.Color != "" {
			conv.Color = info.Color
		}
		if inserted {
			if !msg.Self && !l.isActive(msg.Pubkey) {
				conv.UnreadCount++
			}
			if msg.ReceivedTimestamp >= conv.LastUpdateTime {
				conv.LatestMessageID = msg.ID
				conv.LatestMessageStatus = msg.Status
				conv.LastUpdateTime = msg.ReceivedTimestamp
			}
		}
		if created {
			_, err = tx.InsertConversation(conv)
		} else {
			err = tx.PutConversation(conv)
		}
		return err
	})
	return conv, inserted, created, err
}

func (l *Listener) isActive(pubkey string) bool {
	return l.presence != nil && l.presence.IsActive(pubkey)
}

func (l *Listener) notify(conv *store.Conversation, msg *store.Message, content string) {
	if l.opts.Mute || conv.Blocked.IsBlocked() || l.isActive(conv.Pubkey) {
		return
	}
	title := conv.Alias
	if title == "" {
		title = codec.ShortPubkey(conv.Pubkey)
	}
	body := content
	if msg.Type == store.TypePayment {
		body = fmt.Sprintf("Received %s sats.", codec.FormatSats(msg.Amount))
	}
	l.bus.Emit(bus.KindNotify, Notification{
		Pubkey:    conv.Pubkey,
		MessageID: msg.ID,
		Title:     title,
		Body:      body,
	})
}

func (l *Listener) handleError(err error) {
	if ledger.IsLostConnection(err) {
		l.logger.Warn("invoice subscription lost connection", zap.Error(err))
		l.bus.Warn(WarnReconnecting, "Lost connection to the node, reconnecting.", "")
		if l.status != nil {
			l.status.TryTransition(status.Reconnecting)
		}
		l.startReconnect()
		return
	}
	l.logger.Error("invoice subscription failed", zap.Error(err))
	l.bus.Warn(WarnReceiveFailed, "Failed to receive messages.", "")
}

func (l *Listener) startReconnect() {
	l.mu.Lock()
	if l.reconnecting || l.ctx == nil {
		l.mu.Unlock()
		return
	}
	l.reconnecting = true
	ctx := l.ctx
	l.mu.Unlock()

	go l.reconnect(ctx)
}

func (l *Listener) reconnect(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.reconnecting = false
		l.mu.Unlock()
	}()

	l.Stop()
	delay := l.opts.RetryMin
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if err := l.subscribe(ctx); err != nil {
			l.logger.Warn("resubscribe failed", zap.Duration("retry_in", delay), zap.Error(err))
			delay *= 2
			if delay > l.opts.RetryMax {
				delay = l.opts.RetryMax
			}
			continue
		}
		if l.status != nil {
			l.status.TryTransition(status.Ready)
		}
		if l.opts.OnReconnect != nil {
			l.opts.OnReconnect(ctx)
		}
		return
	}
}
