package daemon

import (
	"context"
	"io"

	"github.com/matheus3301/lnchat/internal/api"
	"github.com/matheus3301/lnchat/internal/bus"
	"github.com/matheus3301/lnchat/internal/chat"
	"github.com/matheus3301/lnchat/internal/config"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/ledger/lnd"
	"github.com/matheus3301/lnchat/internal/live"
	"github.com/matheus3301/lnchat/internal/lock"
	"github.com/matheus3301/lnchat/internal/logging"
	"github.com/matheus3301/lnchat/internal/outbox"
	"github.com/matheus3301/lnchat/internal/presence"
	"github.com/matheus3301/lnchat/internal/profile"
	"github.com/matheus3301/lnchat/internal/status"
	"github.com/matheus3301/lnchat/internal/store"
	lnsync "github.com/matheus3301/lnchat/internal/sync"
	"github.com/matheus3301/lnchat/internal/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	Version     string
	SocketPath  string // optional override for testing; empty = use default

	// Config and Ledger replace the config file and the lnd connection
	// when set. Tests use them to run the daemon against a fake node.
	Config *config.Config
	Ledger ledger.Ledger
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideVault,
			provideTracing,
			provideLedger,
			providePresence,
			provideSyncEngine,
			provideRunner,
			provideListener,
			provideSender,
			provideChat,
			provideController,
			provideSessionService,
			provideSyncService,
			provideChatService,
			provideMessageService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	if err := config.LoadEnv(profile.EnvPath(p.ProfileName)); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg)
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so a second daemon never opens the
// database.
func provideStore(p Params, logger *zap.Logger, _ *lock.Lock) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideVault() *crypto.Vault {
	return crypto.NewVault()
}

func provideTracing(p Params, cfg *config.Config, logger *zap.Logger) *tracing.Manager {
	return tracing.NewManager(tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		Stdout:         cfg.Tracing.Stdout,
		FilePath:       profile.TracePath(p.ProfileName),
		ServiceVersion: p.Version,
	}, logger)
}

func provideLedger(p Params, cfg *config.Config, logger *zap.Logger) (ledger.Ledger, error) {
	if p.Ledger != nil {
		return p.Ledger, nil
	}
	return lnd.Dial(lnd.Config{
		Host:         cfg.LND.Host,
		TLSCertPath:  cfg.LND.TLSCertPath,
		MacaroonPath: cfg.LND.MacaroonPath,
	}, logger.Named("lnd"))
}

func providePresence(b *bus.Bus) *presence.Tracker {
	return presence.NewTracker(b)
}

func provideSyncEngine(db *store.DB, l ledger.Ledger, vault *crypto.Vault, b *bus.Bus, tracker *presence.Tracker, cfg *config.Config, logger *zap.Logger) *lnsync.Engine {
	return lnsync.NewEngine(db, l, vault, b, tracker, lnsync.Options{LookbackDays: cfg.Sync.LookbackDays}, logger.Named("sync"))
}

func provideRunner(engine *lnsync.Engine, m *status.Machine, logger *zap.Logger) *lnsync.Runner {
	return lnsync.NewRunner(engine, m, logger.Named("sync"))
}

func provideListener(db *store.DB, l ledger.Ledger, vault *crypto.Vault, tracker *presence.Tracker, m *status.Machine, b *bus.Bus, cfg *config.Config, runner *lnsync.Runner, logger *zap.Logger) *live.Listener {
	logger = logger.Named("live")
	return live.NewListener(db, l, vault, tracker, m, b, live.Options{
		Mute: cfg.Prefs.Mute,
		// Invoices settled while the subscription was down are picked up
		// by a warm pass.
		OnReconnect: func(ctx context.Context) {
			if _, err := runner.Sync(ctx); err != nil {
				logger.Warn("catch-up sync failed", zap.Error(err))
			}
		},
	}, logger)
}

func provideSender(db *store.DB, l ledger.Ledger, vault *crypto.Vault, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, l, vault, b, outbox.Options{
		FeeLimitSat: cfg.Prefs.FeeLimitSat,
		TimePref:    cfg.Prefs.TimePref,
	}, logger.Named("outbox"))
}

func provideChat(db *store.DB, l ledger.Ledger, vault *crypto.Vault, tracker *presence.Tracker, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *chat.Service {
	return chat.NewService(db, l, vault, tracker, b, chat.Options{ShowAnonymous: cfg.Prefs.AnonymousVisible()}, logger.Named("chat"))
}

func provideController(db *store.DB, vault *crypto.Vault, l ledger.Ledger, m *status.Machine, runner *lnsync.Runner, listener *live.Listener, logger *zap.Logger) *Controller {
	return NewController(db, vault, l, m, runner, listener, logger)
}

func provideSessionService(p Params, ctrl *Controller, m *status.Machine, db *store.DB, l ledger.Ledger, vault *crypto.Vault, b *bus.Bus, logger *zap.Logger) *api.SessionService {
	return api.NewSessionService(p.ProfileName, ctrl, m, db, l, vault, b, logger)
}

func provideSyncService(runner *lnsync.Runner, m *status.Machine) *api.SyncService {
	return api.NewSyncService(runner, m)
}

func provideChatService(c *chat.Service) *api.ChatService {
	return api.NewChatService(c)
}

func provideMessageService(c *chat.Service, sender *outbox.Sender) *api.MessageService {
	return api.NewMessageService(c, sender)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, l ledger.Ledger, ctrl *Controller, tracer *tracing.Manager, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := tracer.Initialize(ctx); err != nil {
				return err
			}

			// Start gRPC server in background so a locked daemon can be
			// unlocked over the socket.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			pass, ok := config.Passphrase()
			if !ok || pass == "" {
				logger.Info("no passphrase in environment, waiting for unlock")
				return machine.Transition(status.Locked)
			}
			if err := ctrl.Unlock(ctx, pass); err != nil {
				logger.Error("unlock from environment failed", zap.Error(err))
				return machine.Transition(status.Locked)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctrl.Stop()
			srv.Stop(ctx)
			if err := tracer.Shutdown(ctx); err != nil {
				logger.Warn("error flushing traces", zap.Error(err))
			}
			if c, ok := l.(io.Closer); ok {
				_ = c.Close()
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
