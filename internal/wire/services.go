package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Service names.
const (
	SessionServiceName = "lnchat.v1.SessionService"
	SyncServiceName    = "lnchat.v1.SyncService"
	ChatServiceName    = "lnchat.v1.ChatService"
	MessageServiceName = "lnchat.v1.MessageService"
)

// SessionServiceServer reports daemon state and streams bus events.
type SessionServiceServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	Unlock(context.Context, *UnlockRequest) (*Empty, error)
	Lock(context.Context, *LockRequest) (*Empty, error)
	WatchEvents(*WatchEventsRequest, EventStream) error
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(*EventEnvelope) error
	Context() context.Context
}

// SyncServiceServer triggers and reports sync passes.
type SyncServiceServer interface {
	StartSync(context.Context, *StartSyncRequest) (*StartSyncResponse, error)
	GetSyncStatus(context.Context, *GetSyncStatusRequest) (*GetSyncStatusResponse, error)
}

// ChatServiceServer manages conversations.
type ChatServiceServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	GetConversation(context.Context, *GetConversationRequest) (*ConversationResponse, error)
	AddConversation(context.Context, *AddConversationRequest) (*ConversationResponse, error)
	Acknowledge(context.Context, *AcknowledgeRequest) (*Empty, error)
	SetBlocked(context.Context, *SetBlockedRequest) (*Empty, error)
	SetBookmarked(context.Context, *SetBookmarkedRequest) (*Empty, error)
	Focus(context.Context, *FocusRequest) (*Empty, error)
}

// MessageServiceServer lists and sends messages.
type MessageServiceServer interface {
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
}

// unary builds a method descriptor for a typed handler.
func unary[S, Req, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + service + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(e *EventEnvelope) error {
	return s.ServerStream.SendMsg(e)
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	req := new(WatchEventsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(SessionServiceServer).WatchEvents(req, &eventStream{stream})
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionServiceName, "GetStatus", SessionServiceServer.GetStatus),
		unary(SessionServiceName, "Unlock", SessionServiceServer.Unlock),
		unary(SessionServiceName, "Lock", SessionServiceServer.Lock),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "WatchEvents",
		Handler:       watchEventsHandler,
		ServerStreams: true,
	}},
}

var SyncServiceDesc = grpc.ServiceDesc{
	ServiceName: SyncServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SyncServiceName, "StartSync", SyncServiceServer.StartSync),
		unary(SyncServiceName, "GetSyncStatus", SyncServiceServer.GetSyncStatus),
	},
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ChatServiceName, "ListConversations", ChatServiceServer.ListConversations),
		unary(ChatServiceName, "GetConversation", ChatServiceServer.GetConversation),
		unary(ChatServiceName, "AddConversation", ChatServiceServer.AddConversation),
		unary(ChatServiceName, "Acknowledge", ChatServiceServer.Acknowledge),
		unary(ChatServiceName, "SetBlocked", ChatServiceServer.SetBlocked),
		unary(ChatServiceName, "SetBookmarked", ChatServiceServer.SetBookmarked),
		unary(ChatServiceName, "Focus", ChatServiceServer.Focus),
	},
}

var MessageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "ListMessages", MessageServiceServer.ListMessages),
		unary(MessageServiceName, "SendMessage", MessageServiceServer.SendMessage),
	},
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncServiceDesc, srv)
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

func RegisterMessageServiceServer(s grpc.ServiceRegistrar, srv MessageServiceServer) {
	s.RegisterService(&MessageServiceDesc, srv)
}
