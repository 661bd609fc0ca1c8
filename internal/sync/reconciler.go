package sync

import (
	"fmt"
	"strconv"

	"github.com/matheus3301/lnchat/internal/store"
	"go.uber.org/zap"
)

// Reconciler manages the persisted sync watermarks: the cursor bounding
// warm fetches and the flag selecting cold or warm mode.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// Cursor returns the last-sync cursor in unix seconds, or 0 when unset.
func (r *Reconciler) Cursor() (int64, error) {
	v, ok, err := r.db.GetState(store.StateCursor)
	if err != nil || !ok {
		return 0, err
	}
	cur, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.logger.Warn("ignoring malformed sync cursor", zap.String("value", v))
		return 0, nil
	}
	return cur, nil
}

// AdvanceCursor moves the cursor to unixSeconds unless it already points
// later. The cursor never moves backwards.
func (r *Reconciler) AdvanceCursor(unixSeconds int64) error {
	moved, err := r.db.AdvanceState(store.StateCursor, unixSeconds)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	if moved {
		r.logger.Debug("sync cursor advanced", zap.Int64("cursor", unixSeconds))
	}
	return nil
}

// FirstSyncComplete reports whether a cold sync has committed.
func (r *Reconciler) FirstSyncComplete() (bool, error) {
	v, ok, err := r.db.GetState(store.StateFirstSyncComplete)
	if err != nil || !ok {
		return false, err
	}
	done, _ := strconv.ParseBool(v)
	return done, nil
}

// MarkFirstSyncComplete records that a cold sync committed.
func (r *Reconciler) MarkFirstSyncComplete() error {
	return r.db.SetState(store.StateFirstSyncComplete, "true")
}
