package engine

import (
	"context"

	"aegis/internal/policy"
)

// AsyncSanitizer bounds concurrent Sanitize calls to a fixed pool size, for
// callers issuing many concurrent requests (e.g. an HTTP server under
// load) that want to cap how much CPU the recognizer set and Vault
// encryption can consume at once, rather than letting every inbound
// request spawn its own unbounded goroutine.
//
// Grounded on internal/anonymizer/anonymizer.go's dispatchOllamaAsync,
// which gates concurrent outbound Ollama queries behind a buffered
// channel semaphore (ollamaSem). That method drops work when the
// semaphore is full, since a stale background cache refill is
// disposable; a Sanitize call is not disposable, so AsyncSanitizer
// blocks on the semaphore instead of dropping the request.
type AsyncSanitizer struct {
	engine *Engine
	sem    chan struct{}
}

// NewAsyncSanitizer returns an AsyncSanitizer that admits at most
// poolSize concurrent Sanitize calls through the underlying Engine.
func NewAsyncSanitizer(e *Engine, poolSize int) *AsyncSanitizer {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &AsyncSanitizer{engine: e, sem: make(chan struct{}, poolSize)}
}

// SanitizeAsyncResult carries a Sanitize outcome back across the
// goroutine boundary.
type SanitizeAsyncResult struct {
	Result SanitizeResult
	Err    error
}

// Sanitize runs e.Engine.Sanitize on a pool goroutine and returns a
// channel that receives exactly one result. Acquiring a pool slot
// respects ctx: a canceled or expired ctx unblocks the caller without
// ever running the underlying Sanitize call.
func (a *AsyncSanitizer) Sanitize(ctx context.Context, sessionID, text string, p policy.AegisPolicy) <-chan SanitizeAsyncResult {
	out := make(chan SanitizeAsyncResult, 1)

	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		out <- SanitizeAsyncResult{Err: ctx.Err()}
		close(out)
		return out
	}

	go func() {
		defer func() { <-a.sem }()
		res, err := a.engine.Sanitize(ctx, sessionID, text, p)
		out <- SanitizeAsyncResult{Result: res, Err: err}
		close(out)
	}()

	return out
}
