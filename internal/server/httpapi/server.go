// Package httpapi exposes the authentication service over HTTP. It decodes
// request bodies into validated credential pairs, forwards them to the
// service, and maps typed results onto status codes; no credential policy
// lives here.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/loginapp/internal/logging"
	"github.com/dmitrijs2005/loginapp/internal/server/models"
	"github.com/dmitrijs2005/loginapp/internal/server/services"
)

// AuthService is the part of the authentication service the transport uses.
type AuthService interface {
	Register(ctx context.Context, username string, password string) (*models.User, error)
	Login(ctx context.Context, username string, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*models.User, error)
	UserFromAccessToken(ctx context.Context, token string) (*models.User, error)
}

type Server struct {
	address string
	logger  logging.Logger
	auth    AuthService
}

func NewServer(address string, l logging.Logger, auth AuthService) *Server {
	return &Server{
		address: address,
		logger:  l.With("module", "http_server"),
		auth:    auth,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/me", s.handleMe)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
