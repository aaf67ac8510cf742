// Package httpapi exposes the Aegis engine over HTTP: POST /sanitize,
// POST /desanitize, GET /health, GET /metrics (spec.md §6).
//
// Grounded on internal/management/management.go's Server shape: a single
// struct holding the dependencies a handler needs, bearer-token
// authMiddleware built on crypto/subtle.ConstantTimeCompare, a writeJSON
// helper, and a ListenAndServe method that builds one *http.Server. The
// DomainRegistry/domains endpoints have no Aegis analog and are not
// carried over (see DESIGN.md, "Dropped teacher code"). golang.org/x/net/
// http2.ConfigureServer replaces internal/mitm/mitm.go's hand-rolled
// http2.Server{...} (that package served a hijacked TLS connection
// directly; here the server is a normal *http.Server, so the idiomatic
// wiring is ConfigureServer against it before ListenAndServeTLS).
package httpapi

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"aegis/internal/config"
	"aegis/internal/engine"
	"aegis/internal/logger"
	"aegis/internal/policy"
)

// Server is the Aegis HTTP API server.
type Server struct {
	cfg   *config.Config
	eng   *engine.Engine
	token string // bearer token for auth; empty = no auth
	log   *logger.Logger
	http  *http.Server // set once ListenAndServeTLS has built it; nil before then
}

// New constructs a Server bound to eng, authenticated by cfg's management
// token (empty disables auth, matching management.go's bearer-token
// convention).
func New(cfg *config.Config, eng *engine.Engine, log *logger.Logger) *Server {
	s := &Server{cfg: cfg, eng: eng, token: cfg.ManagementToken, log: log}
	if s.token != "" {
		s.log.Info("auth", "bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the full API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sanitize", s.handleSanitize)
	mux.HandleFunc("/desanitize", s.handleDesanitize)
	mux.HandleFunc("/purge", s.handlePurge)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return s.authMiddleware(mux)
}

// authMiddleware checks for a valid Bearer token if one is configured.
// /health is always reachable without a token: orchestrators probing
// liveness should not need a credential.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("auth", "unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sanitizeRequest struct {
	SessionID string                `json:"sessionId"`
	Text      string                `json:"text"`
	Policy    sanitizeRequestPolicy `json:"policy"`
}

type sanitizeRequestPolicy struct {
	Mode            string   `json:"mode"`
	EntityTypes     []string `json:"entityTypes"`
	AllowList       []string `json:"allowList"`
	ConfidenceScore float64  `json:"confidenceScore"`
	Language        string   `json:"language"`
}

type sanitizeResponse struct {
	Text         string `json:"text"`
	SpansFound   int    `json:"spansFound"`
	TokensMinted int    `json:"tokensMinted"`
	TokensReused int    `json:"tokensReused"`
}

func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req sanitizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		http.Error(w, `invalid request: need {"sessionId":"...","text":"..."}`, http.StatusBadRequest)
		return
	}

	p := policy.AegisPolicy{
		Mode:            policy.Mode(req.Policy.Mode),
		EntityTypes:     req.Policy.EntityTypes,
		AllowList:       req.Policy.AllowList,
		ConfidenceScore: req.Policy.ConfidenceScore,
		Language:        req.Policy.Language,
	}

	res, err := s.eng.Sanitize(r.Context(), req.SessionID, req.Text, p)
	if err != nil {
		s.writeEngineError(w, "sanitize", err)
		return
	}

	writeJSON(w, http.StatusOK, sanitizeResponse{
		Text:         res.Text,
		SpansFound:   res.SpansFound,
		TokensMinted: res.TokensMinted,
		TokensReused: res.TokensReused,
	})
}

type desanitizeRequest struct {
	SessionID  string `json:"sessionId"`
	Text       string `json:"text"`
	Authorized bool   `json:"authorized"`
}

type desanitizeResponse struct {
	Text     string `json:"text"`
	Resolved int    `json:"resolved"`
	Missed   int    `json:"missed"`
}

func (s *Server) handleDesanitize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req desanitizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		http.Error(w, `invalid request: need {"sessionId":"...","text":"..."}`, http.StatusBadRequest)
		return
	}

	res, err := s.eng.Desanitize(r.Context(), req.SessionID, req.Text, req.Authorized)
	if err != nil {
		s.writeEngineError(w, "desanitize", err)
		return
	}

	writeJSON(w, http.StatusOK, desanitizeResponse{
		Text:     res.Text,
		Resolved: res.Resolved,
		Missed:   res.Missed,
	})
}

type purgeRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1024)
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		http.Error(w, `invalid request: need {"sessionId":"..."}`, http.StatusBadRequest)
		return
	}
	purged := s.eng.Purge(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]bool{"purged": purged})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.eng.Health()
	status := http.StatusOK
	if !h.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":         map[bool]string{true: "ready", false: "not_ready"}[h.Ready],
		"activeSessions": h.ActiveSessions,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.MetricsSnapshot())
}

// writeEngineError maps an *engine.Error's Kind onto an HTTP status, per
// spec.md §4.I: a caller-facing boundary still needs an HTTP status, but
// the Kind (carried in the JSON body) is the authoritative signal.
func (s *Server) writeEngineError(w http.ResponseWriter, op string, err error) {
	var engErr *engine.Error
	status := http.StatusInternalServerError
	kind := engine.KindInternalInvariantViolation
	if errors.As(err, &engErr) {
		kind = engErr.Kind
		switch engErr.Kind {
		case engine.KindPolicyInvalid:
			status = http.StatusBadRequest
		case engine.KindVaultTTLExpired, engine.KindVaultCapacityExceeded:
			status = http.StatusConflict
		case engine.KindTimeout:
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusInternalServerError
		}
	}
	s.log.Warnf(op, "request failed: %v", err)
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("[HTTPAPI] JSON encode error: %v\n", err)
	}
}

// ListenAndServeTLS starts the Aegis HTTP API server over TLS with HTTP/2
// negotiation configured explicitly (rather than left to net/http's
// defaults), matching mitm.go's explicit http2.Server tuning for
// MaxConcurrentStreams and IdleTimeout.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if err := http2.ConfigureServer(srv, &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          90 * time.Second,
	}); err != nil {
		return fmt.Errorf("httpapi: configure http2: %w", err)
	}
	s.http = srv
	s.log.Infof("listen", "listening on %s", addr)
	err := srv.ListenAndServeTLS(certFile, keyFile)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server started by ListenAndServeTLS,
// waiting up to the context deadline for in-flight requests to finish.
// It is a no-op if called before ListenAndServeTLS has built the
// underlying *http.Server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
