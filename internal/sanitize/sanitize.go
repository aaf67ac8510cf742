// Package sanitize implements the Sanitize Pipeline (spec.md §4.F): the
// orchestration that turns raw text containing PII into token-substituted
// text plus a recorded reversible mapping, given a policy and a session.
//
// Grounded on internal/proxy/proxy.go's anonymizeRequestBody: a single
// read -> detect -> transform -> commit pass per request, and on
// internal/anonymizer/anonymizer.go's AnonymizeJSON/walkValue for the
// JSON-body convenience entry point, generalized from "every string field
// containing a chat message" to "every string leaf in the document."
//
// New tokens are recorded in the Vault one span at a time, as each is
// minted, not in one commit after all spans are tokenized: an error part
// way through leaves the mappings already recorded for earlier spans (and
// any ordinals already advanced) in the session.
package sanitize

import (
	"context"
	"encoding/json"
	"fmt"

	"aegis/internal/policy"
	"aegis/internal/recognizer"
	"aegis/internal/resolve"
	"aegis/internal/tokenizer"
)

// Result is the outcome of one Sanitize call.
type Result struct {
	Text         string
	SpansFound   int
	TokensMinted int
	TokensReused int
}

// Vault is the subset of *vault.Vault the pipeline depends on, so tests
// can substitute a fake.
type Vault interface {
	BeginOrTouch(sessionID string) error
	Record(sessionID, entityType, normalizedSurface, rawSurface, token string) error
	LookupReverse(sessionID, entityType, normalizedSurface string) (string, bool, error)
	NextOrdinal(sessionID, entityType string) (int, error)
}

// Pipeline runs the Sanitize Pipeline: Registry -> allow-list filter ->
// Span Resolver -> per-span tokenize-or-reuse -> Vault commit -> rewrite.
type Pipeline struct {
	Registry *recognizer.Registry
	Vault    Vault
}

// New constructs a Sanitize Pipeline.
func New(registry *recognizer.Registry, v Vault) *Pipeline {
	return &Pipeline{Registry: registry, Vault: v}
}

// Sanitize runs the full pipeline over text under policy p within
// sessionID, per spec.md §4.F. p must already be defaulted and validated
// by the caller (the engine does both before invoking this).
func (pl *Pipeline) Sanitize(ctx context.Context, sessionID, text string, p policy.AegisPolicy) (Result, error) {
	if err := pl.Vault.BeginOrTouch(sessionID); err != nil {
		return Result{}, fmt.Errorf("sanitize: begin_or_touch: %w", err)
	}

	found, err := pl.Registry.Analyze(ctx, text, p.Language, p.EntityTypes)
	if err != nil {
		return Result{}, fmt.Errorf("sanitize: analyze: %w", err)
	}

	allowSet := p.NormalizeAllowList()
	found = recognizer.FilterAllowList(found, text, allowSet, p.Language)

	runes := []rune(text)
	resolved, err := resolve.Resolve(found, p.ConfidenceScore, len(runes))
	if err != nil {
		return Result{}, fmt.Errorf("sanitize: resolve: %w", err)
	}
	if len(resolved) == 0 {
		return Result{Text: text}, nil
	}

	tokens := make([]string, len(resolved))
	var minted, reused int

	for i, s := range resolved {
		rawSurface := s.Surface(runes)
		token, wasReused, err := pl.tokenFor(sessionID, p.Mode, s.EntityType, rawSurface)
		if err != nil {
			return Result{}, fmt.Errorf("sanitize: tokenize %s span [%d:%d]: %w", s.EntityType, s.Start, s.End, err)
		}
		tokens[i] = token
		if wasReused {
			reused++
		} else {
			minted++
		}
	}

	out := tokenizer.Rewrite(runes, resolved, tokens)
	return Result{Text: out, SpansFound: len(resolved), TokensMinted: minted, TokensReused: reused}, nil
}

// SanitizeJSON walks a JSON document and sanitizes every string leaf in
// place, returning the re-marshaled document. Grounded on anonymizer.go's
// walkValue: recurse into objects and arrays, transform strings,
// otherwise pass values through unchanged.
func (pl *Pipeline) SanitizeJSON(ctx context.Context, sessionID string, doc []byte, p policy.AegisPolicy) ([]byte, error) {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("sanitize: unmarshal json: %w", err)
	}

	walked, err := pl.walkValue(ctx, sessionID, v, p)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(walked)
	if err != nil {
		return nil, fmt.Errorf("sanitize: marshal json: %w", err)
	}
	return out, nil
}

func (pl *Pipeline) walkValue(ctx context.Context, sessionID string, v any, p policy.AegisPolicy) (any, error) {
	switch val := v.(type) {
	case string:
		result, err := pl.Sanitize(ctx, sessionID, val, p)
		if err != nil {
			return nil, err
		}
		return result.Text, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			w, err := pl.walkValue(ctx, sessionID, elem, p)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			w, err := pl.walkValue(ctx, sessionID, elem, p)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	default:
		return val, nil
	}
}

// tokenFor returns the token to use for one span's surface, reusing a
// previously-minted token when the same (entityType, normalizedSurface)
// pair was already seen in this session (spec.md §4.D "stability"), and
// minting a fresh one otherwise according to mode.
func (pl *Pipeline) tokenFor(sessionID string, mode policy.Mode, entityType, rawSurface string) (token string, reused bool, err error) {
	normalized := tokenizer.NormalizeSurface(rawSurface)

	if mode == policy.ModeHash {
		// HASH is a pure function of the surface; there is nothing to
		// reuse from the Vault and nothing new to record either, since
		// the same input always yields the same output deterministically
		// without a lookup.
		return tokenizer.HashToken(normalized), false, nil
	}

	if existing, ok, err := pl.Vault.LookupReverse(sessionID, entityType, normalized); err != nil {
		return "", false, err
	} else if ok {
		return existing, true, nil
	}

	switch mode {
	case policy.ModeSynthetic:
		seed := tokenizer.SynthSeed(sessionID, entityType, normalized)
		token = tokenizer.Synthesize(entityType, seed)
	default: // MASK, REPLACE
		ordinal, err := pl.Vault.NextOrdinal(sessionID, entityType)
		if err != nil {
			return "", false, err
		}
		token = tokenizer.Token(mode, entityType, ordinal)
	}

	if err := pl.Vault.Record(sessionID, entityType, normalized, rawSurface, token); err != nil {
		return "", false, err
	}
	return token, false, nil
}
