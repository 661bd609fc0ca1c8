package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/matheus3301/lnchat/internal/classify"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/store"
	"go.uber.org/zap"
)

// group is the pending state of one conversation during a run.
type group struct {
	conv     *store.Conversation
	messages []*store.Message
}

func (e *Engine) groupInvoices(ctx context.Context, self string, invoices []ledger.Invoice, summary *Summary) (map[string]*group, error) {
	groups := make(map[string]*group)
	for _, inv := range invoices {
		res := classify.Invoice(ctx, e.ledger, self, inv)
		switch res.Kind {
		case classify.NotMessage:
			summary.Skipped++
			continue
		case classify.Anonymous:
			summary.Anonymous++
			e.logger.Debug("anonymous message", zap.String("id", res.ID), zap.String("reason", res.Reason))
		default:
			summary.Valid++
		}
		m, err := e.invoiceMessage(res, inv)
		if err != nil {
			if errors.Is(err, crypto.ErrLocked) {
				return nil, err
			}
			e.logger.Warn("skipping invoice", zap.String("id", res.ID), zap.Error(err))
			summary.Skipped++
			continue
		}
		add(groups, res.Counterparty, m)
	}
	return groups, nil
}

func (e *Engine) groupPayments(self string, payments []ledger.Payment, summary *Summary) (map[string]*group, error) {
	groups := make(map[string]*group)
	for _, p := range payments {
		res := classify.Payment(self, p)
		if !res.IsMessage() {
			summary.Skipped++
			continue
		}
		summary.Valid++
		m, err := e.paymentMessage(res, p)
		if err != nil {
			if errors.Is(err, crypto.ErrLocked) {
				return nil, err
			}
			e.logger.Warn("skipping payment", zap.String("hash", p.PaymentHash), zap.Error(err))
			summary.Skipped++
			continue
		}
		add(groups, res.Counterparty, m)
	}
	return groups, nil
}

func add(groups map[string]*group, pubkey string, m *store.Message) {
	g, ok := groups[pubkey]
	if !ok {
		g = &group{conv: store.NewConversation(pubkey)}
		groups[pubkey] = g
	}
	g.messages = append(g.messages, m)
}

// merge folds outbound groups into inbound ones keyed by counterparty.
func merge(inbound, outbound map[string]*group) map[string]*group {
	for pk, out := range outbound {
		in, ok := inbound[pk]
		if !ok {
			inbound[pk] = out
			continue
		}
		in.messages = append(in.messages, out.messages...)
	}
	return inbound
}

// finalize orders each group's messages, resolves node metadata and sets
// the latest-message fields. Lookup failures leave alias and color empty.
func (e *Engine) finalize(ctx context.Context, groups map[string]*group) {
	for pk, g := range groups {
		sort.SliceStable(g.messages, func(i, j int) bool {
			return g.messages[i].ReceivedTimestamp < g.messages[j].ReceivedTimestamp
		})
		if pk != store.AnonPubkey {
			info, err := e.ledger.LookupNode(ctx, pk)
			if err != nil {
				e.logger.Debug("node lookup failed", zap.String("pubkey", pk), zap.Error(err))
			} else {
				g.conv.Alias = info.Alias
				g.conv.Color = info.Color
			}
		}
		if n := len(g.messages); n > 0 {
			latest := g.messages[n-1]
			g.conv.LatestMessageID = latest.ID
			g.conv.LatestMessageStatus = latest.Status
			g.conv.LastUpdateTime = latest.ReceivedTimestamp
		}
	}
}

func (e *Engine) invoiceMessage(res classify.Result, inv ledger.Invoice) (*store.Message, error) {
	iv, ct, err := e.sealer.Encrypt([]byte(res.Fields.Content))
	if err != nil {
		return nil, fmt.Errorf("seal content: %w", err)
	}
	received := inv.SettleDate
	if received == 0 {
		received = inv.CreationDate
	}
	receivedNs := received * int64(time.Second)
	if received == 0 {
		receivedNs = e.opts.Now().UnixNano()
	}
	return &store.Message{
		ID:                res.ID,
		Pubkey:            res.Counterparty,
		IV:                iv,
		Ciphertext:        ct,
		Signature:         res.Fields.Signature,
		Type:              res.Type,
		SentTimestamp:     res.SentTimestamp,
		ReceivedTimestamp: receivedNs,
		Status:            ledger.StatusSucceeded,
		Amount:            inv.AmtPaidSat,
		FailureReason:     ledger.FailureNone,
	}, nil
}

func (e *Engine) paymentMessage(res classify.Result, p ledger.Payment) (*store.Message, error) {
	iv, ct, err := e.sealer.Encrypt([]byte(res.Fields.Content))
	if err != nil {
		return nil, fmt.Errorf("seal content: %w", err)
	}
	fee := p.FeeSat
	reason := p.FailureReason
	if reason == "" {
		reason = ledger.FailureNone
	}
	return &store.Message{
		ID:                res.ID,
		Pubkey:            res.Counterparty,
		IV:                iv,
		Ciphertext:        ct,
		Signature:         res.Fields.Signature,
		Type:              res.Type,
		SentTimestamp:     res.SentTimestamp,
		ReceivedTimestamp: p.CreationTimeNs,
		Status:            p.Status,
		Amount:            p.ValueSat,
		Fee:               &fee,
		FailureReason:     reason,
		Self:              true,
	}, nil
}
