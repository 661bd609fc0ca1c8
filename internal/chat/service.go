// Package chat is the user-facing conversation API over the store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/lnchat/internal/bus"
	"github.com/matheus3301/lnchat/internal/codec"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/presence"
	"github.com/matheus3301/lnchat/internal/store"
	"go.uber.org/zap"
)

var (
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
	ErrNodeNotFound         = errors.New("node not found")
	ErrConversationExists   = errors.New("conversation already exists")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidPubkey        = errors.New("invalid node pubkey")
)

// Warning codes for user-actionable errors.
const (
	WarnSelfConversation   = "self_conversation"
	WarnNodeNotFound       = "node_not_found"
	WarnConversationExists = "conversation_exists"
)

// Opener decrypts stored message bodies.
type Opener interface {
	Decrypt(iv, ciphertext []byte) ([]byte, error)
}

// Options tunes the service.
type Options struct {
	// ShowAnonymous lists the anonymous bucket alongside regular
	// conversations.
	ShowAnonymous bool
}

// Message is a stored message with its body opened.
type Message struct {
	store.Message
	Text string
	// Sealed is set when the body could not be decrypted.
	Sealed bool
}

// Filter narrows ListConversations.
type Filter struct {
	Blocked        store.Blocked
	BookmarkedOnly bool
}

// Service manages conversations.
type Service struct {
	db       *store.DB
	ledger   ledger.Ledger
	opener   Opener
	presence *presence.Tracker
	bus      *bus.Bus
	opts     Options
	logger   *zap.Logger
}

// NewService creates a chat service.
func NewService(db *store.DB, l ledger.Ledger, opener Opener, tracker *presence.Tracker, b *bus.Bus, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = presence.NewTracker(b)
	}
	return &Service{
		db:       db,
		ledger:   l,
		opener:   opener,
		presence: tracker,
		bus:      b,
		opts:     opts,
		logger:   logger,
	}
}

// AddConversation starts a conversation with a node known to the network
// graph.
func (s *Service) AddConversation(ctx context.Context, pubkey string) (*store.Conversation, error) {
	pubkey = strings.ToLower(strings.TrimSpace(pubkey))
	if _, err := codec.HexToBytes(pubkey); err != nil || pubkey == "" {
		return nil, ErrInvalidPubkey
	}

	self, err := s.ledger.IdentityPubkey(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity pubkey: %w", err)
	}
	if pubkey == self {
		s.bus.Warn(WarnSelfConversation, "You cannot message yourself.", pubkey)
		return nil, ErrSelfConversation
	}

	existing, err := s.db.GetConversation(pubkey)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if existing != nil {
		s.bus.Warn(WarnConversationExists, "Conversation already exists.", pubkey)
		return existing, ErrConversationExists
	}

	info, err := s.ledger.LookupNode(ctx, pubkey)
	if err != nil {
		if errors.Is(err, ledger.ErrNodeNotFound) {
			s.bus.Warn(WarnNodeNotFound, "Node not found in the network graph.", pubkey)
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("lookup node: %w", err)
	}

	conv := store.NewConversation(pubkey)
	conv.Alias = info.Alias
	conv.Color = info.Color
	inserted, err := s.db.InsertConversation(conv)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	if !inserted {
		return nil, ErrConversationExists
	}
	s.logger.Info("conversation added", zap.String("pubkey", pubkey), zap.String("alias", info.Alias))
	s.bus.Emit(bus.KindConversationAdded, pubkey)
	return conv, nil
}

// GetConversation returns a conversation or ErrConversationNotFound.
func (s *Service) GetConversation(pubkey string) (*store.Conversation, error) {
	c, err := s.db.GetConversation(pubkey)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrConversationNotFound
	}
	return c, nil
}

// ListConversations returns conversations, most recent first.
func (s *Service) ListConversations(f Filter, limit, offset int) ([]store.Conversation, error) {
	return s.db.ListConversations(store.ConversationFilter{
		Blocked:        f.Blocked,
		BookmarkedOnly: f.BookmarkedOnly,
		IncludeAnon:    s.opts.ShowAnonymous,
	}, limit, offset)
}

// ListMessages returns a page of messages older than the (beforeTs,
// beforeID) key, newest first, with bodies decrypted. A locked vault fails the call; a body that
// does not open is returned with Sealed set.
func (s *Service) ListMessages(pubkey string, beforeTs int64, beforeID string, limit int) ([]Message, error) {
	msgs, err := s.db.ListMessages(pubkey, beforeTs, beforeID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		body, err := s.opener.Decrypt(m.IV, m.Ciphertext)
		if errors.Is(err, crypto.ErrLocked) {
			return nil, err
		}
		if err != nil {
			s.logger.Warn("failed to open message", zap.String("id", m.ID), zap.Error(err))
			out = append(out, Message{Message: m, Sealed: true})
			continue
		}
		out = append(out, Message{Message: m, Text: string(body)})
	}
	return out, nil
}

// Acknowledge focuses a conversation and clears its unread count.
func (s *Service) Acknowledge(pubkey string) error {
	if _, err := s.GetConversation(pubkey); err != nil {
		return err
	}
	s.presence.Focus(pubkey)
	if err := s.db.ResetUnread(pubkey); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	s.bus.Emit(bus.KindConversationUpdated, pubkey)
	return nil
}

// SetFocus marks the conversation a client has open. An empty pubkey
// clears focus.
func (s *Service) SetFocus(pubkey string) {
	s.presence.Focus(pubkey)
}

// SetVisible records client visibility. Becoming visible acknowledges the
// focused conversation.
func (s *Service) SetVisible(visible bool) error {
	s.presence.SetVisible(visible)
	if !visible {
		return nil
	}
	focused := s.presence.Focused()
	if focused == "" {
		return nil
	}
	if err := s.db.ResetUnread(focused); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	s.bus.Emit(bus.KindConversationUpdated, focused)
	return nil
}

// SetBlocked blocks or unblocks a counterparty. Messages from blocked
// counterparties are still stored but raise no notifications.
func (s *Service) SetBlocked(pubkey string, blocked bool) error {
	b := store.BlockedFalse
	if blocked {
		b = store.BlockedTrue
	}
	ok, err := s.db.SetBlocked(pubkey, b)
	if err != nil {
		return fmt.Errorf("set blocked: %w", err)
	}
	if !ok {
		return ErrConversationNotFound
	}
	s.bus.Emit(bus.KindConversationUpdated, pubkey)
	return nil
}

// SetBookmarked pins or unpins a conversation.
func (s *Service) SetBookmarked(pubkey string, bookmarked bool) error {
	ok, err := s.db.SetBookmarked(pubkey, bookmarked)
	if err != nil {
		return fmt.Errorf("set bookmarked: %w", err)
	}
	if !ok {
		return ErrConversationNotFound
	}
	s.bus.Emit(bus.KindConversationUpdated, pubkey)
	return nil
}
