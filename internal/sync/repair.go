package sync

import (
	"fmt"

	"github.com/matheus3301/lnchat/internal/bus"
	"go.uber.org/zap"
)

// RepairResult counts rows moved out of IN_FLIGHT by Repair.
type RepairResult struct {
	Messages      int64
	Conversations int64
}

// Repair marks every IN_FLIGHT message and conversation as UNKNOWN. It runs
// at startup, before live updates attach, so a send interrupted by a crash
// is not shown as pending forever. Running it twice is a no-op.
func (e *Engine) Repair() (*RepairResult, error) {
	msgs, convs, err := e.db.FixPendingMessages()
	if err != nil {
		return nil, fmt.Errorf("fix pending messages: %w", err)
	}
	res := &RepairResult{Messages: msgs, Conversations: convs}
	if msgs > 0 || convs > 0 {
		e.logger.Info("repaired in-flight messages",
			zap.Int64("messages", msgs),
			zap.Int64("conversations", convs),
		)
	}
	e.bus.Emit(bus.KindSyncRepaired, *res)
	return res, nil
}
