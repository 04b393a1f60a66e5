// Package server wires the storefront together: database, mail, rate
// limiting, services, the public HTTP API and the gRPC ops endpoint. It
// handles graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/httpapi"
	"github.com/dmitrijs2005/storefront/internal/server/mail"
	"github.com/dmitrijs2005/storefront/internal/server/ratelimit"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"github.com/dmitrijs2005/storefront/internal/telemetry"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/storefront/internal/server/grpc"
)

const serviceName = "storefront"

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       *redis.Client
	userService *services.UserService
	itemService *services.ItemService
	cartService *services.CartService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	mailer, err := newMailer(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	limits, rdb, err := newLimits(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		redis:       rdb,
		userService: services.NewUserService(db, rm, c, mailer, limits, logger),
		itemService: services.NewItemService(db, rm, c, logger),
		cartService: services.NewCartService(db, rm, logger),
	}, nil
}

// newMailer picks the mail transport named by the config.
func newMailer(ctx context.Context, c *config.Config, l logging.Logger) (mail.Transport, error) {
	switch c.MailTransport {
	case "ses":
		t, err := mail.NewSESTransport(ctx, c.SESRegion, c.SESEndpoint, c.MailFrom)
		if err != nil {
			return nil, fmt.Errorf("mail init error: %w", err)
		}
		return t, nil
	case "log", "":
		return mail.NewLogTransport(l), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", c.MailTransport)
	}
}

// newLimits connects to Redis when an address is configured. Without one,
// nothing is throttled.
func newLimits(ctx context.Context, c *config.Config) (services.Limits, *redis.Client, error) {
	if c.RedisAddr == "" {
		return services.Limits{}, nil, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return services.Limits{}, nil, fmt.Errorf("redis init error: %w", err)
	}

	return services.Limits{
		Reset:  ratelimit.NewRedisLimiter(rdb, "reset", c.ResetRequestLimit, c.RateLimitWindow),
		Signin: ratelimit.NewRedisLimiter(rdb, "signin", c.SigninAttemptLimit, c.RateLimitWindow),
	}, rdb, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) handler() *httpapi.Handler {
	return httpapi.NewHandler(httpapi.Options{
		Accounts:      app.userService,
		Catalog:       app.itemService,
		Carts:         app.cartService,
		Sessions:      app.userService.Codec(),
		DB:            app.db,
		Logger:        app.logger,
		SecureCookies: strings.HasPrefix(app.config.FrontendURL, "https://"),
	})
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	origins := app.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{app.config.FrontendURL}
	}

	s := httpapi.NewServer(app.config.HTTPAddr, app.handler().Routes(origins), app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a signal arrives or either server fails, then releases
// the database, Redis and tracing resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, app.config.OTELEndpoint)
	if err != nil {
		app.logger.Warn(ctx, "tracing disabled", "error", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(shutdownTracing)
}

func (app *App) close(shutdownTracing func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), httpapi.ShutdownTimeout)
	defer cancel()

	if err := shutdownTracing(ctx); err != nil {
		app.logger.Warn(ctx, "tracing shutdown", "error", err)
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
