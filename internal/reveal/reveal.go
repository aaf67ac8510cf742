// Package reveal implements the Reveal Pipeline (spec.md §4.G): scanning
// previously-sanitized text for bracketed tokens and substituting back the
// original surface text recorded in the Vault, gated per-token by caller
// authorization.
//
// Grounded on internal/anonymizer/anonymizer.go's DeanonymizeText (a
// single-pass token scan with a Vault lookup per match) and
// StreamingDeanonymize's buffering-across-chunk-boundaries logic, adapted
// from its Anthropic-specific SSE envelope to a transport-agnostic chunk
// feed.
package reveal

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// tokenPattern matches every bracketed token shape the Tokenizer emits:
// "[TYPE]" (MASK), "[TYPE_A]" (REPLACE ordinal), and the alias forms
// ("[PATIENT_A]", "[EMAIL_A]"). HASH tokens and SYNTHETIC surrogates are
// never matched here: HASH tokens and most surrogates are unbracketed, and
// the bracketed "[<TYPE>-<n>]" fallback surrogate contains a hyphen the
// pattern excludes. They are not reversible, by design (spec.md §4.D).
var tokenPattern = regexp.MustCompile(`\[[A-Z][A-Z0-9_]*\]`)

// Result is the outcome of one Reveal call.
type Result struct {
	Text     string
	Resolved int
	Missed   int
}

// Vault is the subset of *vault.Vault the pipeline depends on.
type Vault interface {
	LookupForward(sessionID, token string) (string, bool, error)
}

// Pipeline runs the Reveal Pipeline: token scan -> per-token Vault
// lookup -> substitution.
type Pipeline struct {
	Vault Vault
}

// New constructs a Reveal Pipeline.
func New(v Vault) *Pipeline {
	return &Pipeline{Vault: v}
}

// Reveal scans text for bracketed tokens and replaces every one that
// resolves in the Vault with its original surface text. A token that
// does not resolve (unknown, wrong session, its Vault session expired, or
// the caller is not authorized to reveal) is left untouched in the output
// and counted as Missed — neither case is treated as a fatal error
// (spec.md §4.G): authorization is a per-token "leave it in place" branch,
// not a call-level rejection, so an unauthorized call still returns its
// text and a Missed count rather than an error.
func (pl *Pipeline) Reveal(ctx context.Context, sessionID, text string, authorized bool) (Result, error) {
	matches := tokenPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return Result{Text: text}, nil
	}
	if !authorized {
		return Result{Text: text, Missed: len(matches)}, nil
	}

	var b strings.Builder
	cursor := 0
	var resolved, missed int

	for _, m := range matches {
		start, end := m[0], m[1]
		token := text[start:end]
		surface, ok, err := pl.Vault.LookupForward(sessionID, token)
		if err != nil {
			return Result{}, fmt.Errorf("reveal: lookup_forward %s: %w", token, err)
		}
		b.WriteString(text[cursor:start])
		if ok {
			b.WriteString(surface)
			resolved++
		} else {
			b.WriteString(token)
			missed++
		}
		cursor = end
	}
	b.WriteString(text[cursor:])

	return Result{Text: b.String(), Resolved: resolved, Missed: missed}, nil
}
