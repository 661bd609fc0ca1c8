package api

import (
	"context"

	"github.com/matheus3301/lnchat/internal/chat"
	"github.com/matheus3301/lnchat/internal/store"
	"github.com/matheus3301/lnchat/internal/wire"
)

const defaultPageSize = 50

// ChatService implements the ChatService gRPC service.
type ChatService struct {
	chat *chat.Service
}

// NewChatService creates a new chat service.
func NewChatService(c *chat.Service) *ChatService {
	return &ChatService{chat: c}
}

func (s *ChatService) ListConversations(_ context.Context, req *wire.ListConversationsRequest) (*wire.ListConversationsResponse, error) {
	limit := defaultPageSize
	if req.Limit > 0 {
		limit = req.Limit
	}
	convs, err := s.chat.ListConversations(chat.Filter{
		Blocked:        store.Blocked(req.Blocked),
		BookmarkedOnly: req.BookmarkedOnly,
	}, limit, req.Offset)
	if err != nil {
		return nil, toStatus("list conversations", err)
	}

	out := make([]wire.Conversation, 0, len(convs))
	for i := range convs {
		out = append(out, conversationToWire(&convs[i]))
	}
	return &wire.ListConversationsResponse{
		Conversations: out,
		PageInfo:      wire.PageInfo{HasMore: len(convs) == limit},
	}, nil
}

func (s *ChatService) GetConversation(_ context.Context, req *wire.GetConversationRequest) (*wire.ConversationResponse, error) {
	c, err := s.chat.GetConversation(req.Pubkey)
	if err != nil {
		return nil, toStatus("get conversation", err)
	}
	return &wire.ConversationResponse{Conversation: conversationToWire(c)}, nil
}

func (s *ChatService) AddConversation(ctx context.Context, req *wire.AddConversationRequest) (*wire.ConversationResponse, error) {
	c, err := s.chat.AddConversation(ctx, req.Pubkey)
	if err != nil {
		return nil, toStatus("add conversation", err)
	}
	return &wire.ConversationResponse{Conversation: conversationToWire(c)}, nil
}

func (s *ChatService) Acknowledge(_ context.Context, req *wire.AcknowledgeRequest) (*wire.Empty, error) {
	if err := s.chat.Acknowledge(req.Pubkey); err != nil {
		return nil, toStatus("acknowledge", err)
	}
	return &wire.Empty{}, nil
}

func (s *ChatService) SetBlocked(_ context.Context, req *wire.SetBlockedRequest) (*wire.Empty, error) {
	if err := s.chat.SetBlocked(req.Pubkey, req.Blocked); err != nil {
		return nil, toStatus("set blocked", err)
	}
	return &wire.Empty{}, nil
}

func (s *ChatService) SetBookmarked(_ context.Context, req *wire.SetBookmarkedRequest) (*wire.Empty, error) {
	if err := s.chat.SetBookmarked(req.Pubkey, req.Bookmarked); err != nil {
		return nil, toStatus("set bookmarked", err)
	}
	return &wire.Empty{}, nil
}

func (s *ChatService) Focus(_ context.Context, req *wire.FocusRequest) (*wire.Empty, error) {
	s.chat.SetFocus(req.Pubkey)
	if err := s.chat.SetVisible(req.Visible); err != nil {
		return nil, toStatus("focus", err)
	}
	return &wire.Empty{}, nil
}

func conversationToWire(c *store.Conversation) wire.Conversation {
	return wire.Conversation{
		Pubkey:              c.Pubkey,
		Alias:               c.Alias,
		Color:               c.Color,
		UnreadCount:         c.UnreadCount,
		Blocked:             string(c.Blocked),
		Bookmarked:          c.Bookmarked,
		CharLimit:           c.CharLimit,
		LatestMessageID:     c.LatestMessageID,
		LatestMessageStatus: string(c.LatestMessageStatus),
		LastUpdateTime:      c.LastUpdateTime,
	}
}
