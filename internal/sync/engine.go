package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/matheus3301/lnchat/internal/bus"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/store"
	"github.com/matheus3301/lnchat/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrFirstSync is returned when a cold sync cannot be persisted. The
	// conversation table is cleared and the next run retries cold.
	ErrFirstSync = errors.New("first sync failed")
	// ErrInProgress is returned when a sync run is already active.
	ErrInProgress = errors.New("sync already in progress")
)

// DefaultLookbackDays bounds the cold-sync history fetch.
const DefaultLookbackDays = 30

// Mode selects how much history a run fetches.
type Mode string

const (
	ModeCold Mode = "cold"
	ModeWarm Mode = "warm"
)

// Sealer encrypts message bodies before they are stored.
type Sealer interface {
	Encrypt(plaintext []byte) (iv, ciphertext []byte, err error)
}

// ActiveChecker reports whether a conversation is on screen. Messages for
// the active conversation do not raise its unread count.
type ActiveChecker interface {
	IsActive(pubkey string) bool
}

// Options tunes a sync engine.
type Options struct {
	LookbackDays int
	Now          func() time.Time
}

// Summary describes one completed run.
type Summary struct {
	Mode          Mode
	Since         time.Time
	Cursor        int64
	Invoices      int
	Payments      int
	Valid         int
	Anonymous     int
	Skipped       int
	Conversations int
	Inserted      int
	Duplicates    int
}

// Engine reconciles the local store with the node's invoice and payment
// history. A run is cold until one has committed, warm afterwards.
type Engine struct {
	db       *store.DB
	ledger   ledger.Ledger
	sealer   Sealer
	bus      *bus.Bus
	presence ActiveChecker
	recon    *Reconciler
	opts     Options
	logger   *zap.Logger

	running gosync.Mutex
}

// NewEngine creates a new sync engine. presence may be nil.
func NewEngine(db *store.DB, l ledger.Ledger, sealer Sealer, b *bus.Bus, presence ActiveChecker, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		db:       db,
		ledger:   l,
		sealer:   sealer,
		bus:      b,
		presence: presence,
		recon:    NewReconciler(db, logger),
		opts:     opts,
		logger:   logger,
	}
}

// Reconciler exposes the engine's cursor bookkeeping.
func (e *Engine) Reconciler() *Reconciler {
	return e.recon
}

// Run performs one sync pass. It returns ErrInProgress if another pass is
// running.
func (e *Engine) Run(ctx context.Context) (summary *Summary, err error) {
	if !e.running.TryLock() {
		return nil, ErrInProgress
	}
	defer e.running.Unlock()

	first, err := e.recon.FirstSyncComplete()
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	mode := ModeWarm
	if !first {
		mode = ModeCold
	}

	ctx, span := tracing.StartSpan(ctx, "sync.run", attribute.String("sync.mode", string(mode)))
	defer func() { tracing.End(span, err) }()

	e.bus.Emit(bus.KindSyncStarted, mode)
	e.logger.Info("sync started", zap.String("mode", string(mode)))

	if mode == ModeCold {
		summary, err = e.cold(ctx)
	} else {
		summary, err = e.warm(ctx)
	}
	if err != nil {
		e.logger.Error("sync failed", zap.String("mode", string(mode)), zap.Error(err))
		e.bus.Emit(bus.KindSyncFailed, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("sync.conversations", summary.Conversations),
		attribute.Int("sync.inserted", summary.Inserted),
	)
	e.logger.Info("sync completed",
		zap.String("mode", string(mode)),
		zap.Int("invoices", summary.Invoices),
		zap.Int("payments", summary.Payments),
		zap.Int("conversations", summary.Conversations),
		zap.Int("inserted", summary.Inserted),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("anonymous", summary.Anonymous),
	)
	e.bus.Emit(bus.KindSyncCompleted, *summary)
	return summary, nil
}

func (e *Engine) cold(ctx context.Context) (*Summary, error) {
	start := e.opts.Now()
	since := start.AddDate(0, 0, -e.opts.LookbackDays)
	summary := &Summary{Mode: ModeCold, Since: since}

	groups, err := e.collect(ctx, since, summary)
	if err != nil {
		return nil, err
	}
	if err := e.persist(ctx, groups, summary); err != nil {
		if clearErr := e.db.ClearConversations(); clearErr != nil {
			e.logger.Error("failed to clear conversations after cold sync", zap.Error(clearErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrFirstSync, err)
	}

	if err := e.recon.AdvanceCursor(start.Unix()); err != nil {
		return nil, err
	}
	if err := e.recon.MarkFirstSyncComplete(); err != nil {
		return nil, fmt.Errorf("mark first sync: %w", err)
	}
	summary.Cursor = start.Unix()
	return summary, nil
}

func (e *Engine) warm(ctx context.Context) (*Summary, error) {
	start := e.opts.Now()
	cursor, err := e.recon.Cursor()
	if err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	since := ledger.Since(cursor)
	if since.IsZero() {
		since = start.AddDate(0, 0, -e.opts.LookbackDays)
	}
	summary := &Summary{Mode: ModeWarm, Since: since}

	groups, err := e.collect(ctx, since, summary)
	if err != nil {
		return nil, err
	}
	if err := e.persist(ctx, groups, summary); err != nil {
		return nil, fmt.Errorf("persist warm sync: %w", err)
	}

	if err := e.recon.AdvanceCursor(start.Unix()); err != nil {
		return nil, err
	}
	summary.Cursor = start.Unix()
	return summary, nil
}

// collect fetches history since the given time and groups it by
// counterparty.
func (e *Engine) collect(ctx context.Context, since time.Time, summary *Summary) (map[string]*group, error) {
	ctx, span := tracing.StartSpan(ctx, "sync.fetch")
	var err error
	defer func() { tracing.End(span, err) }()

	self, err := e.ledger.IdentityPubkey(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity pubkey: %w", err)
	}
	invoices, err := e.ledger.ListInvoices(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	payments, err := e.ledger.ListPayments(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	summary.Invoices = len(invoices)
	summary.Payments = len(payments)
	span.SetAttributes(
		attribute.Int("sync.invoices", len(invoices)),
		attribute.Int("sync.payments", len(payments)),
	)

	inbound, err := e.groupInvoices(ctx, self, invoices, summary)
	if err != nil {
		return nil, err
	}
	outbound, err := e.groupPayments(self, payments, summary)
	if err != nil {
		return nil, err
	}
	groups := merge(inbound, outbound)
	e.finalize(ctx, groups)
	summary.Conversations = len(groups)
	return groups, nil
}

// persist writes every group in one transaction. Messages already stored
// are skipped, and only newly stored inbound messages count as unread.
func (e *Engine) persist(ctx context.Context, groups map[string]*group, summary *Summary) (err error) {
	_, span := tracing.StartSpan(ctx, "sync.persist", attribute.Int("sync.conversations", len(groups)))
	defer func() { tracing.End(span, err) }()

	if len(groups) == 0 {
		return nil
	}
	pubkeys := make([]string, 0, len(groups))
	for pk := range groups {
		pubkeys = append(pubkeys, pk)
	}

	var added []string
	var inserted, duplicates int
	err = e.db.Update(ctx, "sync persist", func(tx *store.Tx) error {
		added, inserted, duplicates = nil, 0, 0
		existing, err := tx.BulkGetConversations(pubkeys)
		if err != nil {
			return fmt.Errorf("load conversations: %w", err)
		}
		for _, pk := range pubkeys {
			g := groups[pk]
			unread := 0
			for _, m := range g.messages {
				ok, err := tx.InsertMessage(m)
				if err != nil {
					return fmt.Errorf("insert message %s: %w", m.ID, err)
				}
				if !ok {
					duplicates++
					continue
				}
				inserted++
				if !m.Self {
					unread++
				}
			}
			if e.presence != nil && e.presence.IsActive(pk) {
				unread = 0
			}

			conv, found := existing[pk]
			if !found {
				g.conv.UnreadCount = unread
				if _, err := tx.InsertConversation(g.conv); err != nil {
					return fmt.Errorf("insert conversation %s: %w", pk, err)
				}
				added = append(added, pk)
				continue
			}
			mergeInto(conv, g.conv)
			if err := tx.PutConversation(conv); err != nil {
				return fmt.Errorf("update conversation %s: %w", pk, err)
			}
			if err := tx.IncrementUnread(pk, unread); err != nil {
				return fmt.Errorf("update unread %s: %w", pk, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	summary.Inserted += inserted
	summary.Duplicates += duplicates
	for _, pk := range added {
		e.bus.Emit(bus.KindConversationAdded, pk)
	}
	return nil
}

// mergeInto folds a freshly synced conversation into the stored one.
func mergeInto(dst, src *store.Conversation) {
	if src.Alias != "" {
		dst.Alias = src.Alias
	}
	if src.Color != "" {
		dst.Color = src.Color
	}
	if src.LatestMessageID != "" && src.LastUpdateTime >= dst.LastUpdateTime {
		dst.LatestMessageID = src.LatestMessageID
		dst.LatestMessageStatus = src.LatestMessageStatus
		dst.LastUpdateTime = src.LastUpdateTime
	}
}
