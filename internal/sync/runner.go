package sync

import (
	"context"
	"fmt"

	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/status"
	"go.uber.org/zap"
)

// Runner drives sync passes through the daemon state machine: SYNCING while
// a pass runs, READY after it commits, RECONNECTING when the node drops
// and DEGRADED on other failures.
type Runner struct {
	engine  *Engine
	machine *status.Machine
	logger  *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(engine *Engine, machine *status.Machine, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{engine: engine, machine: machine, logger: logger}
}

// Sync runs one pass.
func (r *Runner) Sync(ctx context.Context) (*Summary, error) {
	if !r.machine.TryTransition(status.Syncing) {
		current := r.machine.Current()
		if current == status.Syncing {
			return nil, ErrInProgress
		}
		return nil, fmt.Errorf("cannot sync while %s", current)
	}

	summary, err := r.engine.Run(ctx)
	if err != nil {
		next := status.Degraded
		if ledger.IsLostConnection(err) {
			next = status.Reconnecting
		}
		if !r.machine.TryTransition(next) {
			r.logger.Warn("unexpected state after failed sync", zap.String("state", string(r.machine.Current())))
		}
		return nil, err
	}
	r.machine.TryTransition(status.Ready)
	return summary, nil
}

// Engine returns the underlying engine.
func (r *Runner) Engine() *Engine {
	return r.engine
}
