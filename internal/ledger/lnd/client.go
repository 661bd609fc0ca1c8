// Package lnd implements ledger.Ledger against an lnd node over gRPC.
package lnd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/matheus3301/lnchat/internal/ledger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

const (
	pageSize       = 1000
	maxRecvMsgSize = 50 * 1024 * 1024
)

// Config locates the node and its credentials.
type Config struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
}

// Client is a ledger.Ledger backed by lnd.
type Client struct {
	conn      *grpc.ClientConn
	lightning lnrpc.LightningClient
	router    routerrpc.RouterClient
	logger    *zap.Logger
}

// Dial builds a client for the node described by cfg. The connection is
// established lazily by the first RPC.
func Dial(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		return nil, errors.New("lnd host not configured")
	}
	tlsCreds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("load tls cert: %w", err)
	}
	mac, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("read macaroon: %w", err)
	}

	conn, err := grpc.NewClient(cfg.Host,
		grpc.WithTransportCredentials(tlsCreds),
		grpc.WithPerRPCCredentials(macaroonCredential(hex.EncodeToString(mac))),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial lnd: %w", err)
	}
	return &Client{
		conn:      conn,
		lightning: lnrpc.NewLightningClient(conn),
		router:    routerrpc.NewRouterClient(conn),
		logger:    logger,
	}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) IdentityPubkey(ctx context.Context) (string, error) {
	info, err := c.lightning.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return "", fmt.Errorf("get info: %w", mapErr(err))
	}
	return info.IdentityPubkey, nil
}

func (c *Client) ListInvoices(ctx context.Context, since time.Time) ([]ledger.Invoice, error) {
	var out []ledger.Invoice
	var offset uint64
	for {
		resp, err := c.lightning.ListInvoices(ctx, &lnrpc.ListInvoiceRequest{
			IndexOffset:       offset,
			NumMaxInvoices:    pageSize,
			CreationDateStart: unixOrZero(since),
		})
		if err != nil {
			return nil, fmt.Errorf("list invoices: %w", mapErr(err))
		}
		for _, inv := range resp.Invoices {
			out = append(out, convertInvoice(inv))
		}
		if len(resp.Invoices) < pageSize || resp.LastIndexOffset <= offset {
			return out, nil
		}
		offset = resp.LastIndexOffset
	}
}

func (c *Client) ListPayments(ctx context.Context, since time.Time) ([]ledger.Payment, error) {
	var out []ledger.Payment
	var offset uint64
	for {
		resp, err := c.lightning.ListPayments(ctx, &lnrpc.ListPaymentsRequest{
			IncludeIncomplete: false,
			IndexOffset:       offset,
			MaxPayments:       pageSize,
			CreationDateStart: unixOrZero(since),
		})
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", mapErr(err))
		}
		for _, p := range resp.Payments {
			out = append(out, convertPayment(p))
		}
		if len(resp.Payments) < pageSize || resp.LastIndexOffset <= offset {
			return out, nil
		}
		offset = resp.LastIndexOffset
	}
}

type subscription struct {
	cancel context.CancelFunc
}

func (s *subscription) Close() { s.cancel() }

func (c *Client) SubscribeInvoices(ctx context.Context, onEvent func(ledger.Invoice), onError func(error)) (ledger.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.lightning.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe invoices: %w", mapErr(err))
	}

	go func() {
		for {
			inv, err := stream.Recv()
			if err != nil {
				if ctx.Err() == nil {
					onError(mapErr(err))
				}
				return
			}
			onEvent(convertInvoice(inv))
		}
	}()
	return &subscription{cancel: cancel}, nil
}

func (c *Client) LookupNode(ctx context.Context, pubkey string) (ledger.NodeInfo, error) {
	resp, err := c.lightning.GetNodeInfo(ctx, &lnrpc.NodeInfoRequest{PubKey: pubkey, IncludeChannels: false})
	if err != nil {
		if status.Code(err) == codes.NotFound || strings.Contains(err.Error(), "unable to find node") {
			return ledger.NodeInfo{}, ledger.ErrNodeNotFound
		}
		return ledger.NodeInfo{}, fmt.Errorf("get node info: %w", mapErr(err))
	}
	if resp.Node == nil {
		return ledger.NodeInfo{}, ledger.ErrNodeNotFound
	}
	return ledger.NodeInfo{Alias: resp.Node.Alias, Color: resp.Node.Color}, nil
}

func (c *Client) SignMessage(ctx context.Context, msg []byte) (string, error) {
	resp, err := c.lightning.SignMessage(ctx, &lnrpc.SignMessageRequest{Msg: msg})
	if err != nil {
		return "", fmt.Errorf("sign message: %w", mapErr(err))
	}
	return resp.Signature, nil
}

func (c *Client) VerifyMessage(ctx context.Context, msg []byte, signature string) (ledger.Verification, error) {
	resp, err := c.lightning.VerifyMessage(ctx, &lnrpc.VerifyMessageRequest{Msg: msg, Signature: signature})
	if err != nil {
		return ledger.Verification{}, fmt.Errorf("verify message: %w", mapErr(err))
	}
	return ledger.Verification{Valid: resp.Valid, Pubkey: resp.Pubkey}, nil
}

// SendPayment starts a keysend and follows its updates on a background
// goroutine. The stream outlives ctx cancellation.
func (c *Client) SendPayment(ctx context.Context, req ledger.SendRequest, onUpdate func(ledger.Payment), onError func(error)) error {
	dest, err := hex.DecodeString(req.Dest)
	if err != nil {
		return fmt.Errorf("decode dest: %w", err)
	}
	stream, err := c.router.SendPaymentV2(context.WithoutCancel(ctx), &routerrpc.SendPaymentRequest{
		Dest:              dest,
		Amt:               req.AmountSat,
		PaymentHash:       req.PaymentHash,
		DestCustomRecords: req.CustomRecords,
		TimeoutSeconds:    req.TimeoutSeconds,
		FeeLimitSat:       req.FeeLimitSat,
		TimePref:          req.TimePref,
		AllowSelfPayment:  req.AllowSelfPayment,
		NoInflightUpdates: req.NoInflightUpdates,
	})
	if err != nil {
		return fmt.Errorf("send payment: %w", mapErr(err))
	}

	go func() {
		for {
			p, err := stream.Recv()
			if err != nil {
				onError(mapErr(err))
				return
			}
			onUpdate(convertPayment(p))
		}
	}()
	return nil
}

func unixOrZero(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}

func mapErr(err error) error {
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%w: %s", ledger.ErrLostConnection, status.Convert(err).Message())
	}
	return err
}

var _ ledger.Ledger = (*Client)(nil)
