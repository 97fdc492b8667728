package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lobbynet/internal/api/handler"
	"github.com/mcoot/lobbynet/internal/api/middleware"
	"github.com/mcoot/lobbynet/internal/api/response"
	"github.com/mcoot/lobbynet/internal/services/auth"
	"github.com/mcoot/lobbynet/internal/services/directory"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	AuthService      *auth.Service
	DirectoryService *directory.Service
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(cfg.AuthService)
	sessionHandler := handler.NewSessionHandler(cfg.DirectoryService)

	authMiddleware := middleware.Auth(cfg.AuthService)

	// API subrouter with common middleware
	// Recovery sits inside Tracing so a panic lands on the request span.
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Tracing())
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	// Identity routes (no auth required to sign in)
	api.HandleFunc("/auth/anonymous", authHandler.SignInAnonymously).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(authMiddleware)
	authProtected.HandleFunc("/me", authHandler.Me).Methods(http.MethodGet)
	authProtected.HandleFunc("/signout", authHandler.SignOut).Methods(http.MethodPost)

	// Session routes (all require auth)
	// Literal paths are registered before {id} so they win the match.
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("", sessionHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("", sessionHandler.List).Methods(http.MethodGet)
	sessions.HandleFunc("/join-by-code", sessionHandler.JoinByCode).Methods(http.MethodPost)
	sessions.HandleFunc("/quick-join", sessionHandler.QuickJoin).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}", sessionHandler.Get).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}", sessionHandler.Delete).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id}/join", sessionHandler.Join).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/heartbeat", sessionHandler.Heartbeat).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/members/{identity}", sessionHandler.RemoveMember).Methods(http.MethodDelete)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
