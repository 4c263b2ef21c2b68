package server

import (
	"log/slog"
	"net/http"

	"github.com/textbehind/textbehind-api/internal/auth"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing. Everything except
// the health check requires a bearer token.
func NewRouter(h *Handlers, verifier *auth.Verifier, logger *slog.Logger, cfg Config) http.Handler {
	authed := http.NewServeMux()
	authed.HandleFunc("POST /videos/uploads", h.CreateUpload)
	authed.HandleFunc("POST /videos/{id}/complete", h.FinalizeUpload)
	authed.HandleFunc("GET /videos", h.ListVideos)
	authed.HandleFunc("GET /videos/{id}", h.GetVideo)
	authed.HandleFunc("GET /proxy", h.Proxy)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("/", AuthMiddleware(verifier)(authed))

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
