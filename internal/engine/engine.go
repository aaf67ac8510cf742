// Package engine wires the Recognizer Registry, Allow-List Filter, Span
// Resolver, Tokenizer, Vault, Sanitize Pipeline, and Reveal Pipeline into
// Aegis's public library surface (spec.md §6): Sanitize, Desanitize,
// Purge, Health. It owns the Failure Gate (§4.I): every error returned
// across this boundary is an *Error with one of the Kind values, never a
// bare error or a partially-applied result.
//
// Grounded on internal/proxy/proxy.go's top-level orchestration (config +
// cache + detector wired once at startup, then invoked per request) and
// cmd/proxy/main.go's construction order.
package engine

import (
	"context"
	"errors"
	"time"

	"aegis/internal/config"
	"aegis/internal/logger"
	"aegis/internal/metrics"
	"aegis/internal/policy"
	"aegis/internal/recognizer"
	"aegis/internal/reveal"
	"aegis/internal/sanitize"
	"aegis/internal/vault"
)

// Engine is the top-level entry point for every Aegis operation.
type Engine struct {
	registry  *recognizer.Registry
	validator *policy.Validator
	vault     *vault.Vault
	sanitize  *sanitize.Pipeline
	reveal    *reveal.Pipeline
	metrics   *metrics.Metrics
	log       *logger.Logger
	timeout   time.Duration
}

// New constructs an Engine from configuration: a process-wide Registry
// (spec.md §9's "recognizer set held as a process-wide singleton"), a
// Vault, and the Sanitize/Reveal pipelines wired on top of both.
func New(cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*Engine, error) {
	registry := recognizer.NewRegistry()
	// 0.88: above policy.DefaultConfidence (0.85) so PERSON spans with no
	// title cue still survive the default policy's threshold, but below
	// builtin.person.title's 0.92 so the two sources reconcile by
	// confidence rather than the analyzer trivially dominating.
	registry.SetAnalyzer(recognizer.NewRegexAnalyzer(0.88))

	v, err := vault.New(vault.Config{
		RootKey:       []byte(cfg.VaultRootKey),
		TTL:           cfg.VaultTTL(),
		MaxSessions:   cfg.VaultMaxSessions,
		SweepInterval: cfg.SweepInterval(),
		Logger:        log,
	})
	if err != nil {
		return nil, newError(KindInternalInvariantViolation, "new", "construct vault", err)
	}

	return &Engine{
		registry:  registry,
		validator: policy.NewValidator(registry.KnownEntityTypes()),
		vault:     v,
		sanitize:  sanitize.New(registry, v),
		reveal:    reveal.New(v),
		metrics:   m,
		log:       log,
		timeout:   cfg.SanitizeTimeout(),
	}, nil
}

// Close releases background resources (the Vault's TTL sweeper).
func (e *Engine) Close() { e.vault.Close() }

// SanitizeResult is the public result of a Sanitize call.
type SanitizeResult struct {
	Text         string
	SpansFound   int
	TokensMinted int
	TokensReused int
}

// Sanitize runs the Sanitize Pipeline over text under policy p within
// sessionID (spec.md §6). The policy is defaulted and validated before
// anything touches the Vault or the recognizers, so an invalid policy
// never partially executes.
func (e *Engine) Sanitize(ctx context.Context, sessionID, text string, p policy.AegisPolicy) (SanitizeResult, error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordSanitizeLatency(time.Since(start))
		e.metrics.SanitizeTotal.Add(1)
	}()

	p = policy.WithDefaults(p)
	if err := e.validator.Validate(p); err != nil {
		e.metrics.ErrorsPolicyInvalid.Add(1)
		return SanitizeResult{}, newError(KindPolicyInvalid, "sanitize", err.Error(), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.sanitize.Sanitize(ctx, sessionID, text, p)
	if err != nil {
		return SanitizeResult{}, e.classify("sanitize", err)
	}

	e.metrics.SpansDetected.Add(int64(res.SpansFound))
	e.metrics.TokensMinted.Add(int64(res.TokensMinted))
	e.metrics.TokensReused.Add(int64(res.TokensReused))

	return SanitizeResult{
		Text:         res.Text,
		SpansFound:   res.SpansFound,
		TokensMinted: res.TokensMinted,
		TokensReused: res.TokensReused,
	}, nil
}

// DesanitizeResult is the public result of a Desanitize (reveal) call.
type DesanitizeResult struct {
	Text     string
	Resolved int
	Missed   int
}

// Desanitize runs the Reveal Pipeline over previously-tokenized text
// (spec.md §6, §4.G). authorized gates each token, not the call itself:
// when it is false every bracketed token is left in place and counted as
// Missed in the result rather than rejected with an error.
func (e *Engine) Desanitize(ctx context.Context, sessionID, text string, authorized bool) (DesanitizeResult, error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordRevealLatency(time.Since(start))
		e.metrics.RevealTotal.Add(1)
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.reveal.Reveal(ctx, sessionID, text, authorized)
	if err != nil {
		return DesanitizeResult{}, e.classify("desanitize", err)
	}

	e.metrics.RevealsResolved.Add(int64(res.Resolved))
	e.metrics.RevealsMissed.Add(int64(res.Missed))

	return DesanitizeResult{Text: res.Text, Resolved: res.Resolved, Missed: res.Missed}, nil
}

// Purge deletes a session's Vault mapping immediately (spec.md §6),
// reporting whether a session was actually present.
func (e *Engine) Purge(sessionID string) bool {
	return e.vault.Purge(sessionID)
}

// Health reports whether the engine is ready to serve traffic, per
// spec.md §6's health check. The engine is healthy as soon as
// construction succeeds; there is no external dependency to probe.
func (e *Engine) Health() HealthStatus {
	return HealthStatus{
		Ready:          true,
		ActiveSessions: e.vault.SessionCount(),
	}
}

// HealthStatus is the result of a Health call.
type HealthStatus struct {
	Ready          bool
	ActiveSessions int
}

// MetricsSnapshot returns the current metrics snapshot, for GET /metrics.
func (e *Engine) MetricsSnapshot() metrics.Snapshot {
	return e.metrics.Snapshot(e.vault.SessionCount())
}

// classify maps an internal pipeline error onto a Kind, completing the
// Failure Gate (§4.I) for errors that did not already originate as an
// *Error (those are returned as-is).
func (e *Engine) classify(op string, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.metrics.ErrorsTimeout.Add(1)
		return newError(KindTimeout, op, "operation exceeded its deadline", err)
	case errors.Is(err, vault.ErrTTLExpired):
		return newError(KindVaultTTLExpired, op, "session ttl expired", err)
	case errors.Is(err, vault.ErrCapacityExceeded):
		return newError(KindVaultCapacityExceeded, op, "vault over capacity", err)
	case errors.Is(err, vault.ErrCryptoFailure):
		e.metrics.ErrorsVaultCrypto.Add(1)
		return newError(KindVaultCryptoFailure, op, "vault decryption failed", err)
	default:
		e.metrics.ErrorsRecognizerFailure.Add(1)
		return newError(KindRecognizerFailure, op, "pipeline execution failed", err)
	}
}
