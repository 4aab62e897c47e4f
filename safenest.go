// Package safenest is the embeddable core of the SafeNest companion app.
// It wires the remote store, the durable offline queue and the domain
// services together so a device shell only has to open an App and start a
// session for its role.
package safenest

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/safenestapp/safenest/internal/bridge"
	"github.com/safenestapp/safenest/internal/config"
	"github.com/safenestapp/safenest/internal/household"
	"github.com/safenestapp/safenest/internal/repository"
	"github.com/safenestapp/safenest/internal/store"
	syncengine "github.com/safenestapp/safenest/internal/sync"
	"github.com/safenestapp/safenest/pkg/auth"
	"github.com/safenestapp/safenest/pkg/notification"
)

// Options carries the device-shell hooks that the core cannot provide
// itself. All fields are optional; log-only fallbacks are used when unset.
type Options struct {
	// Alerter plays and stops the caregiver emergency sound
	Alerter bridge.Alerter
	// Notifier delivers push notifications for passive households; when nil
	// the FCM notifier from the config is used, falling back to logging
	Notifier bridge.Notifier
	// Online is the initial connectivity assumption
	Online bool
}

// App owns the shared infrastructure of a device session: the remote store
// connection, the local database and the sync engine on top of them.
type App struct {
	cfg     *config.Config
	db      *gorm.DB
	remote  store.RemoteStore
	rdb     *redis.Client
	Monitor *syncengine.Monitor
	Engine  *syncengine.Engine

	Queue   *repository.QueueRepository
	Cache   *repository.CacheRepository
	Session *repository.SessionRepository

	Households *household.Service

	alerter  bridge.Alerter
	notifier bridge.Notifier
}

// Open connects the configured backend and prepares the local database
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	db, err := repository.Open(cfg.LocalDB.Path)
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}

	app := &App{
		cfg:     cfg,
		db:      db,
		Queue:   repository.NewQueueRepository(db),
		Cache:   repository.NewCacheRepository(db),
		Session: repository.NewSessionRepository(db),
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		app.remote = store.NewMemoryStore()
	case config.BackendWebSocket:
		ws, err := store.DialWSStore(ctx, cfg.Store.GatewayURL, cfg.Store.GatewayToken)
		if err != nil {
			return nil, fmt.Errorf("dial sync gateway: %w", err)
		}
		app.remote = ws
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr(),
			Password: cfg.Store.RedisPassword,
		})
		rs, err := store.NewRedisStore(ctx, rdb)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.rdb = rdb
		app.remote = rs
	}

	app.Monitor = syncengine.NewMonitor(opts.Online)
	app.Engine = syncengine.NewEngine(app.remote, app.Queue, app.Monitor)

	invites := auth.NewInviteManager(cfg.Invite.Secret, cfg.Invite.Expiry)
	app.Households = household.NewService(app.remote, app.Engine, app.Session, invites)

	app.alerter = opts.Alerter
	if app.alerter == nil {
		app.alerter = &bridge.LogAlerter{}
	}
	app.notifier = opts.Notifier
	if app.notifier == nil {
		fcm, err := notification.NewFCMNotifier(cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Printf("⚠️  Push notifications unavailable: %v", err)
		}
		if fcm != nil {
			app.notifier = fcm
		} else {
			app.notifier = &bridge.LogNotifier{}
		}
	}

	log.Printf("[App] Opened with %s backend", cfg.Store.Backend)
	return app, nil
}

// Remote exposes the underlying store for advanced wiring
func (a *App) Remote() store.RemoteStore { return a.remote }

// SignOut clears all device-local state: the pending write queue, the
// read caches and the session record holding the profile and household
// bindings. Any playing alert is silenced. After SignOut the device can
// join a different household; prefer the role session's SignOut, which
// stops its scanner and watches first.
func (a *App) SignOut() error {
	a.alerter.Stop()
	if err := a.Queue.Clear(); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	if err := a.Cache.ClearAll(); err != nil {
		return fmt.Errorf("clear caches: %w", err)
	}
	if err := a.Session.Reset(); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	log.Println("[App] Signed out, local state cleared")
	return nil
}

// Close stops the engine and releases the backend connection
func (a *App) Close() error {
	a.Engine.Close()
	if c, ok := a.remote.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Printf("[App] Store close: %v", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Printf("[App] Redis close: %v", err)
		}
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
