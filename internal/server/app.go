// Package server initializes and runs the login application server.
// It opens the persistent stores, wires the authentication service, handles
// graceful shutdown, and starts the HTTP endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/loginapp/internal/logging"
	"github.com/dmitrijs2005/loginapp/internal/server/config"
	"github.com/dmitrijs2005/loginapp/internal/server/httpapi"
	"github.com/dmitrijs2005/loginapp/internal/server/password"
	"github.com/dmitrijs2005/loginapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/loginapp/internal/server/services"
	"github.com/dmitrijs2005/loginapp/internal/server/sessions"
)

const sessionKeyPrefix = "session:"

type App struct {
	config      *config.Config
	logger      logging.Logger
	repoManager repomanager.RepositoryManager
	redisClient *redis.Client
	authService *services.AuthService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	rm, err := repomanager.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		_ = rm.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("hasher init error: %w", err)
	}

	sessionStore := sessions.NewRedisStore(redisClient, sessionKeyPrefix, cfg.SessionValidityDuration)
	authService := services.NewAuthService(rm.Users(), sessionStore, hasher, cfg)

	return &App{
		config:      cfg,
		logger:      logger,
		repoManager: rm,
		redisClient: redisClient,
		authService: authService,
	}, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.authService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repoManager.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err.Error())
	}
	if err := app.redisClient.Close(); err != nil {
		app.logger.Error(ctx, "error closing redis", "error", err.Error())
	}

	app.logger.Info(ctx, "Shutdown complete")
}
