package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matheus3301/lnchat/internal/bus"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/status"
	"github.com/matheus3301/lnchat/internal/store"
	"github.com/matheus3301/lnchat/internal/wire"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Keyring unlocks and locks the storage vault and drives the connection
// sequence that follows.
type Keyring interface {
	Unlock(ctx context.Context, passphrase string) error
	Lock(ctx context.Context) error
}

// SessionService implements the SessionService gRPC service.
type SessionService struct {
	profile   string
	keyring   Keyring
	startedAt time.Time
	machine   *status.Machine
	db        *store.DB
	ledger    ledger.Ledger
	vault     *crypto.Vault
	bus       *bus.Bus
	logger    *zap.Logger
}

// NewSessionService creates a new session service. l may be nil before the
// node is connected.
func NewSessionService(profile string, keyring Keyring, machine *status.Machine, db *store.DB, l ledger.Ledger, vault *crypto.Vault, b *bus.Bus, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		profile:   profile,
		keyring:   keyring,
		startedAt: time.Now(),
		machine:   machine,
		db:        db,
		ledger:    l,
		vault:     vault,
		bus:       b,
		logger:    logger,
	}
}

func (s *SessionService) GetStatus(ctx context.Context, _ *wire.GetStatusRequest) (*wire.GetStatusResponse, error) {
	current := s.machine.Current()
	resp := &wire.GetStatusResponse{
		Profile:           s.profile,
		Status:            string(current),
		StatusSinceUnixMs: s.machine.Since().UnixMilli(),
		UptimeMs:          time.Since(s.startedAt).Milliseconds(),
		Locked:            s.vault == nil || !s.vault.Unlocked(),
		DroppedEvents:     s.bus.Dropped(),
	}

	if s.ledger != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if pk, err := s.ledger.IdentityPubkey(ctx); err == nil {
			resp.Pubkey = pk
		}
	}

	if s.db != nil {
		if n, err := s.db.CountConversations(); err == nil {
			resp.Conversations = n
		}
		if n, err := s.db.MessageCount(); err == nil {
			resp.Messages = n
		}
		if n, err := s.db.CountByStatus(ledger.StatusInFlight); err == nil {
			resp.InFlight = n
		}
	}

	return resp, nil
}

func (s *SessionService) Unlock(ctx context.Context, req *wire.UnlockRequest) (*wire.Empty, error) {
	if req.Passphrase == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "passphrase is required")
	}
	if err := s.keyring.Unlock(ctx, req.Passphrase); err != nil {
		return nil, toStatus("unlock", err)
	}
	return &wire.Empty{}, nil
}

func (s *SessionService) Lock(ctx context.Context, _ *wire.LockRequest) (*wire.Empty, error) {
	if err := s.keyring.Lock(ctx); err != nil {
		return nil, toStatus("lock", err)
	}
	return &wire.Empty{}, nil
}

func (s *SessionService) WatchEvents(req *wire.WatchEventsRequest, stream wire.EventStream) error {
	ch, unsub := s.bus.Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				s.logger.Warn("failed to encode event payload", zap.String("kind", evt.Kind), zap.Error(err))
				payload = nil
			}
			if err := stream.Send(&wire.EventEnvelope{
				EventID:          evt.ID,
				Profile:          s.profile,
				OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
				Kind:             evt.Kind,
				PayloadVersion:   1,
				Payload:          payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}
