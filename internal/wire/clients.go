package wire

import (
	"context"

	"google.golang.org/grpc"
)

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SessionServiceClient is the client side of SessionService.
type SessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) *SessionServiceClient {
	return &SessionServiceClient{cc: cc}
}

func (c *SessionServiceClient) GetStatus(ctx context.Context, req *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, SessionServiceName, "GetStatus", req, opts...)
}

func (c *SessionServiceClient) Unlock(ctx context.Context, req *UnlockRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, SessionServiceName, "Unlock", req, opts...)
}

func (c *SessionServiceClient) Lock(ctx context.Context, req *LockRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, SessionServiceName, "Lock", req, opts...)
}

// WatchEvents opens the event stream.
func (c *SessionServiceClient) WatchEvents(ctx context.Context, req *WatchEventsRequest, opts ...grpc.CallOption) (*EventReceiver, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &SessionServiceDesc.Streams[0], "/"+SessionServiceName+"/WatchEvents", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventReceiver{stream: stream}, nil
}

// EventReceiver reads envelopes from a WatchEvents stream.
type EventReceiver struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event. It returns io.EOF when the daemon closes
// the stream.
func (r *EventReceiver) Recv() (*EventEnvelope, error) {
	e := new(EventEnvelope)
	if err := r.stream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

// SyncServiceClient is the client side of SyncService.
type SyncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) *SyncServiceClient {
	return &SyncServiceClient{cc: cc}
}

func (c *SyncServiceClient) StartSync(ctx context.Context, req *StartSyncRequest, opts ...grpc.CallOption) (*StartSyncResponse, error) {
	return invoke[StartSyncResponse](ctx, c.cc, SyncServiceName, "StartSync", req, opts...)
}

func (c *SyncServiceClient) GetSyncStatus(ctx context.Context, req *GetSyncStatusRequest, opts ...grpc.CallOption) (*GetSyncStatusResponse, error) {
	return invoke[GetSyncStatusResponse](ctx, c.cc, SyncServiceName, "GetSyncStatus", req, opts...)
}

// ChatServiceClient is the client side of ChatService.
type ChatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) *ChatServiceClient {
	return &ChatServiceClient{cc: cc}
}

func (c *ChatServiceClient) ListConversations(ctx context.Context, req *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, ChatServiceName, "ListConversations", req, opts...)
}

func (c *ChatServiceClient) GetConversation(ctx context.Context, req *GetConversationRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, ChatServiceName, "GetConversation", req, opts...)
}

func (c *ChatServiceClient) AddConversation(ctx context.Context, req *AddConversationRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, ChatServiceName, "AddConversation", req, opts...)
}

func (c *ChatServiceClient) Acknowledge(ctx context.Context, req *AcknowledgeRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatServiceName, "Acknowledge", req, opts...)
}

func (c *ChatServiceClient) SetBlocked(ctx context.Context, req *SetBlockedRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatServiceName, "SetBlocked", req, opts...)
}

func (c *ChatServiceClient) SetBookmarked(ctx context.Context, req *SetBookmarkedRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatServiceName, "SetBookmarked", req, opts...)
}

func (c *ChatServiceClient) Focus(ctx context.Context, req *FocusRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatServiceName, "Focus", req, opts...)
}

// MessageServiceClient is the client side of MessageService.
type MessageServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMessageServiceClient(cc grpc.ClientConnInterface) *MessageServiceClient {
	return &MessageServiceClient{cc: cc}
}

func (c *MessageServiceClient) ListMessages(ctx context.Context, req *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, MessageServiceName, "ListMessages", req, opts...)
}

func (c *MessageServiceClient) SendMessage(ctx context.Context, req *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, MessageServiceName, "SendMessage", req, opts...)
}
