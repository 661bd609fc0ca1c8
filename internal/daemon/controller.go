package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/lnchat/internal/codec"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/live"
	"github.com/matheus3301/lnchat/internal/status"
	"github.com/matheus3301/lnchat/internal/store"
	lnsync "github.com/matheus3301/lnchat/internal/sync"
	"go.uber.org/zap"
)

const keyCheckPlaintext = "lnchat"

// Controller owns the vault and the connection sequence that follows an
// unlock: connect, repair, live subscription, sync.
type Controller struct {
	db       *store.DB
	vault    *crypto.Vault
	ledger   ledger.Ledger
	machine  *status.Machine
	runner   *lnsync.Runner
	listener *live.Listener
	logger   *zap.Logger

	retryMin time.Duration
	retryMax time.Duration

	// Sends still streaming after a lock keep their callbacks, so only
	// the first connection in a process repairs IN_FLIGHT messages.
	repairOnce sync.Once

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller for a locked vault.
func NewController(db *store.DB, vault *crypto.Vault, l ledger.Ledger, machine *status.Machine,
	runner *lnsync.Runner, listener *live.Listener, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		db:       db,
		vault:    vault,
		ledger:   l,
		machine:  machine,
		runner:   runner,
		listener: listener,
		logger:   logger,
		retryMin: time.Second,
		retryMax: 30 * time.Second,
	}
}

// Unlock derives the storage key and, once it opens existing data, starts
// connecting to the node in the background.
func (c *Controller) Unlock(_ context.Context, passphrase string) error {
	if c.vault.Unlocked() {
		return crypto.ErrUnlocked
	}
	salt, err := loadSalt(c.db)
	if err != nil {
		return err
	}
	if err := c.vault.Unlock(passphrase, salt); err != nil {
		return fmt.Errorf("unlock vault: %w", err)
	}
	if err := c.checkKey(); err != nil {
		c.vault.Lock()
		return err
	}
	c.logger.Info("vault unlocked")
	c.start()
	return nil
}

// Lock stops live processing and drops the key.
func (c *Controller) Lock(_ context.Context) error {
	if !c.vault.Unlocked() {
		return crypto.ErrLocked
	}
	c.Stop()
	c.vault.Lock()
	if err := c.machine.Transition(status.Locked); err != nil {
		c.logger.Warn("lock transition rejected", zap.Error(err))
	}
	c.logger.Info("vault locked")
	return nil
}

// Stop cancels the connection sequence and detaches the listener. It
// waits for an in-progress sync pass to return.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.listener.Stop()
}

func (c *Controller) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	go func() {
		defer close(done)
		c.run(ctx)
	}()
}

func (c *Controller) run(ctx context.Context) {
	if err := c.machine.Transition(status.Connecting); err != nil {
		c.logger.Error("cannot start connecting", zap.Error(err))
		return
	}
	pubkey, err := c.connect(ctx)
	if err != nil {
		return
	}
	c.logger.Info("connected to node", zap.String("pubkey", codec.ShortPubkey(pubkey)))

	c.repairOnce.Do(func() {
		if _, err := c.runner.Engine().Repair(); err != nil {
			c.logger.Warn("repair pass failed", zap.Error(err))
		}
	})
	if err := c.listener.Start(ctx); err != nil {
		c.logger.Error("live subscription failed", zap.Error(err))
		c.machine.TryTransition(status.Error)
		return
	}
	if _, err := c.runner.Sync(ctx); err != nil {
		c.logger.Warn("initial sync failed", zap.Error(err))
	}
}

// connect waits for the node to answer, backing off between attempts.
func (c *Controller) connect(ctx context.Context) (string, error) {
	delay := c.retryMin
	for {
		pubkey, err := c.ledger.IdentityPubkey(ctx)
		if err == nil {
			return pubkey, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("node unreachable", zap.Error(err), zap.Duration("retry_in", delay))
		c.machine.TryTransition(status.Reconnecting)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		c.machine.TryTransition(status.Connecting)
		delay = min(delay*2, c.retryMax)
	}
}

// checkKey opens the stored verifier, or writes one on first unlock.
func (c *Controller) checkKey() error {
	raw, ok, err := c.db.GetState(store.StateKeyCheck)
	if err != nil {
		return err
	}
	if !ok {
		iv, ct, err := c.vault.Encrypt([]byte(keyCheckPlaintext))
		if err != nil {
			return err
		}
		return c.db.SetState(store.StateKeyCheck, codec.BytesToBase64(iv)+"."+codec.BytesToBase64(ct))
	}

	ivPart, ctPart, found := strings.Cut(raw, ".")
	if !found {
		return errors.New("malformed key check")
	}
	iv, err := codec.Base64ToBytes(ivPart)
	if err != nil {
		return fmt.Errorf("key check iv: %w", err)
	}
	ct, err := codec.Base64ToBytes(ctPart)
	if err != nil {
		return fmt.Errorf("key check ciphertext: %w", err)
	}
	pt, err := c.vault.Decrypt(iv, ct)
	if err != nil || string(pt) != keyCheckPlaintext {
		return crypto.ErrBadPassphrase
	}
	return nil
}

// loadSalt returns the persisted KDF salt, generating it on first use.
func loadSalt(db *store.DB) ([]byte, error) {
	raw, ok, err := db.GetState(store.StateSalt)
	if err != nil {
		return nil, err
	}
	if ok {
		return codec.Base64ToBytes(raw)
	}
	salt, err := crypto.RandomBytes(crypto.SaltSize)
	if err != nil {
		return nil, err
	}
	if err := db.SetState(store.StateSalt, codec.BytesToBase64(salt)); err != nil {
		return nil, fmt.Errorf("persist salt: %w", err)
	}
	return salt, nil
}
