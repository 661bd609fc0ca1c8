package api

import (
	"context"

	"github.com/matheus3301/lnchat/internal/status"
	lnsync "github.com/matheus3301/lnchat/internal/sync"
	"github.com/matheus3301/lnchat/internal/wire"
)

// SyncService implements the SyncService gRPC service.
type SyncService struct {
	runner  *lnsync.Runner
	machine *status.Machine
}

// NewSyncService creates a new sync service.
func NewSyncService(runner *lnsync.Runner, machine *status.Machine) *SyncService {
	return &SyncService{runner: runner, machine: machine}
}

// StartSync runs a pass and waits for it. The pass is not cancelled when
// the caller gives up.
func (s *SyncService) StartSync(ctx context.Context, _ *wire.StartSyncRequest) (*wire.StartSyncResponse, error) {
	summary, err := s.runner.Sync(context.WithoutCancel(ctx))
	if err != nil {
		return nil, toStatus("sync", err)
	}
	return &wire.StartSyncResponse{
		Mode:          string(summary.Mode),
		Invoices:      summary.Invoices,
		Payments:      summary.Payments,
		Conversations: summary.Conversations,
		Inserted:      summary.Inserted,
		Duplicates:    summary.Duplicates,
		Anonymous:     summary.Anonymous,
		Cursor:        summary.Cursor,
	}, nil
}

func (s *SyncService) GetSyncStatus(_ context.Context, _ *wire.GetSyncStatusRequest) (*wire.GetSyncStatusResponse, error) {
	recon := s.runner.Engine().Reconciler()
	done, err := recon.FirstSyncComplete()
	if err != nil {
		return nil, toStatus("sync status", err)
	}
	cursor, err := recon.Cursor()
	if err != nil {
		return nil, toStatus("sync status", err)
	}
	return &wire.GetSyncStatusResponse{
		Syncing:           s.machine.Current() == status.Syncing,
		FirstSyncComplete: done,
		Cursor:            cursor,
	}, nil
}
