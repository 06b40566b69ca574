package api

import (
	"fmt"
	"net/http"

	"github.com/firebase/genkit/go/genkit"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askdw/askdw/internal/chat"
	"github.com/askdw/askdw/internal/log"
	"github.com/askdw/askdw/internal/session"
)

const (
	defaultRateRPS   = 5
	defaultRateBurst = 10
)

// ServerConfig wires the HTTP surface to the rest of the application.
type ServerConfig struct {
	Logger log.Logger

	// Store holds sessions and transcripts. Required.
	Store session.Store

	// NewAssistant builds the per-session assistant. Required.
	NewAssistant func() (*chat.Assistant, error)

	// Flow optionally exposes the ask flow at POST /api/flow/ask via
	// Genkit's native handler, for Genkit clients and the Developer UI.
	Flow *chat.Flow

	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string

	// TrustProxy reads client IPs from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	RateRPS   float64
	RateBurst int
}

// Server is the HTTP front end.
type Server struct {
	logger  log.Logger
	handler http.Handler
}

// NewServer assembles routes and middleware.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("api: session store is required")
	}
	if cfg.NewAssistant == nil {
		return nil, fmt.Errorf("api: assistant factory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.RateRPS <= 0 {
		cfg.RateRPS = defaultRateRPS
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}

	assistants := newAssistantCache(cfg.NewAssistant)
	askH := &askHandler{assistants: assistants, store: cfg.Store, logger: logger}
	sessH := &sessionHandler{assistants: assistants, store: cfg.Store, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ask", askH.ask)
	mux.HandleFunc("POST /api/sessions", sessH.create)
	mux.HandleFunc("GET /api/sessions", sessH.list)
	mux.HandleFunc("GET /api/sessions/{id}/messages", sessH.messages)
	mux.HandleFunc("DELETE /api/sessions/{id}", sessH.delete)
	if cfg.Flow != nil {
		// Genkit's handler speaks its own envelope, not ours; the
		// endpoint exists for flow-native clients.
		mux.Handle("POST /api/flow/ask", genkit.Handler(cfg.Flow))
	}

	limiter := newRateLimiter(cfg.RateRPS, cfg.RateBurst)

	// Innermost first; requests traverse in reverse order.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(limiter, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = metricsMiddleware(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	apiStack := handler
	secured := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		apiStack.ServeHTTP(w, r)
	})

	// Probes and metrics stay outside the API middleware stack so
	// scrapes do not show up in request logs or rate limit buckets.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", handleHealth)
	topMux.Handle("GET /metrics", promhttp.Handler())
	topMux.Handle("/", secured)

	return &Server{logger: logger, handler: topMux}, nil
}

// Handler returns the root handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
