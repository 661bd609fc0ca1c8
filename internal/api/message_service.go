package api

import (
	"context"
	"errors"

	"github.com/matheus3301/lnchat/internal/chat"
	"github.com/matheus3301/lnchat/internal/outbox"
	"github.com/matheus3301/lnchat/internal/store"
	"github.com/matheus3301/lnchat/internal/wire"
)

// MessageService implements the MessageService gRPC service.
type MessageService struct {
	chat   *chat.Service
	sender *outbox.Sender
}

// NewMessageService creates a new message service.
func NewMessageService(c *chat.Service, sender *outbox.Sender) *MessageService {
	return &MessageService{chat: c, sender: sender}
}

func (s *MessageService) ListMessages(_ context.Context, req *wire.ListMessagesRequest) (*wire.ListMessagesResponse, error) {
	limit := defaultPageSize
	if req.Limit > 0 {
		limit = req.Limit
	}
	msgs, err := s.chat.ListMessages(req.Pubkey, req.Before, req.BeforeID, limit)
	if err != nil {
		return nil, toStatus("list messages", err)
	}

	out := make([]wire.Message, 0, len(msgs))
	for i := range msgs {
		m := messageToWire(&msgs[i].Message)
		m.Text = msgs[i].Text
		m.Sealed = msgs[i].Sealed
		out = append(out, m)
	}
	return &wire.ListMessagesResponse{
		Messages: out,
		PageInfo: wire.PageInfo{HasMore: len(msgs) == limit},
	}, nil
}

// SendMessage stores and dispatches a message. Signing and dispatch
// failures still return the stored message, with Error set.
func (s *MessageService) SendMessage(ctx context.Context, req *wire.SendMessageRequest) (*wire.SendMessageResponse, error) {
	msg, err := s.sender.Send(context.WithoutCancel(ctx), req.Pubkey, req.Text, req.AmountSat)
	if err != nil && (msg == nil || !isSendFailure(err)) {
		return nil, toStatus("send message", err)
	}
	resp := &wire.SendMessageResponse{Message: messageToWire(msg)}
	resp.Message.Text = req.Text
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func isSendFailure(err error) bool {
	return errors.Is(err, outbox.ErrSignFailed) || errors.Is(err, outbox.ErrDispatchFailed)
}

func messageToWire(m *store.Message) wire.Message {
	return wire.Message{
		ID:                m.ID,
		Pubkey:            m.Pubkey,
		Type:              string(m.Type),
		Signature:         m.Signature,
		SentTimestamp:     m.SentTimestamp,
		ReceivedTimestamp: m.ReceivedTimestamp,
		Status:            string(m.Status),
		Amount:            m.Amount,
		Fee:               m.Fee,
		FailureReason:     string(m.FailureReason),
		Self:              m.Self,
	}
}
