package middleware

import (
	"log/slog"
	"net/http"

	sharedmw "github.com/mcoot/lobbynet/internal/middleware"
)

// Logging creates request logging middleware for the API
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return sharedmw.Logging(logger.With(slog.String("component", "api")))
}
