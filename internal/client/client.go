// Package client dials a running lnchatd over its control socket.
package client

import (
	"fmt"

	"github.com/matheus3301/lnchat/internal/wire"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn    *grpc.ClientConn
	Session *wire.SessionServiceClient
	Sync    *wire.SyncServiceClient
	Chat    *wire.ChatServiceClient
	Message *wire.MessageServiceClient
}

// New dials the daemon's Unix domain socket and returns typed service clients.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:    conn,
		Session: wire.NewSessionServiceClient(conn),
		Sync:    wire.NewSyncServiceClient(conn),
		Chat:    wire.NewChatServiceClient(conn),
		Message: wire.NewMessageServiceClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
