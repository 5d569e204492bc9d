// Package app wires the reminder engine together: the entry store, the local
// notification platform, the delivery gateway and the synchronizer. It is
// what an application shell (or diaryctl) embeds.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophdiary/internal/config"
	"github.com/dmitrijs2005/gophdiary/internal/dbx"
	"github.com/dmitrijs2005/gophdiary/internal/logging"
	"github.com/dmitrijs2005/gophdiary/internal/migrations"
	"github.com/dmitrijs2005/gophdiary/internal/notify"
	"github.com/dmitrijs2005/gophdiary/internal/platform"
	"github.com/dmitrijs2005/gophdiary/internal/repositories/metadata"
	"github.com/dmitrijs2005/gophdiary/internal/services"
	"github.com/dmitrijs2005/gophdiary/internal/store"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	store      *store.Store
	platformDB *sql.DB
	platform   *platform.Local
	gateway    *notify.Gateway
	reminders  *services.ReminderService
	dispatcher *platform.Dispatcher
}

// NewApp opens both databases, builds the gateway and initializes it.
// Initialization problems (a missing permission, an unknown zone) are logged,
// not returned: the engine still runs and reports them per reminder.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	st, err := store.Open(ctx, c.StoreDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	pdb, err := openPlatformDB(ctx, c.PlatformDSN)
	if err != nil {
		st.Close()
		return nil, err
	}

	repo := metadata.NewSQLiteRepository(pdb)
	local := platform.NewLocal(repo, platform.WithAutoGrant(true))

	gw := notify.NewGateway(local, repo, notify.Options{
		Channel:     notify.Channel{ID: c.ChannelID, Name: c.ChannelName},
		Zone:        c.Zone,
		SettleDelay: c.SettleDelay,
		CallTimeout: c.CallTimeout,
	}, logger.With("component", "gateway"))

	rs := services.NewReminderService(st, gw, services.Options{
		Horizon:           c.Horizon,
		MaxAttempts:       c.MaxAttempts,
		ResyncConcurrency: c.ResyncConcurrency,
	}, logger.With("component", "reminders"))

	d := platform.NewDispatcher(local, platform.LogSink{Logger: logger.With("component", "sink")},
		c.PollInterval, logger.With("component", "dispatcher"))
	d.SetRecoverer(gw)

	app := &App{
		config:     c,
		logger:     logger,
		store:      st,
		platformDB: pdb,
		platform:   local,
		gateway:    gw,
		reminders:  rs,
		dispatcher: d,
	}

	if err := gw.Initialize(ctx); err != nil {
		logger.Warn(ctx, "notification gateway initialized with errors", "error", err)
	}

	return app, nil
}

func openPlatformDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := dbx.Open(ctx, dbx.DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("platform db init error: %w", err)
	}
	if err := migrations.Up(ctx, db, dbx.DriverSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("platform migrations error: %w", err)
	}
	return db, nil
}

func (app *App) Store() *store.Store {
	return app.store
}

func (app *App) Gateway() *notify.Gateway {
	return app.gateway
}

func (app *App) Reminders() *services.ReminderService {
	return app.reminders
}

// SetSink replaces the dispatcher's delivery sink. Call before Run.
func (app *App) SetSink(sink platform.Sink) {
	app.dispatcher = platform.NewDispatcher(app.platform, sink, app.config.PollInterval,
		app.logger.With("component", "dispatcher"))
	app.dispatcher.SetRecoverer(app.gateway)
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run delivers due reminders until ctx is cancelled or the process receives
// SIGINT, SIGTERM or SIGQUIT.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting reminder engine",
		"store_driver", app.config.StoreDriver,
		"zone", app.gateway.Location().String(),
	)

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.dispatcher.Run(ctx)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "reminder engine stopped")
}

// Close releases the gateway and both databases.
func (app *App) Close() error {
	return errors.Join(
		app.gateway.Close(),
		app.store.Close(),
		app.platformDB.Close(),
	)
}
