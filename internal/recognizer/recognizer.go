// Package recognizer implements the Recognizer Registry (spec.md §4.A) and
// the Allow-List Filter (§4.B).
//
// Two kinds of recognizer feed the registry: built-in/custom regex
// recognizers (rule-based, certain by construction) and an optional
// pluggable EntityAnalyzer (model-based NER, per §9's "heavy NER model
// held as a process-wide singleton" redesign note — injected as an
// immutable shared handle rather than a global).
//
// Grounded on internal/anonymizer/anonymizer.go's compilePatterns/pattern
// table: the same confidence-tiered regex set, generalized from a flat
// []pattern slice into Recognizer values so the registry can mix
// rule-based and model-based sources and so custom recognizers can be
// registered at runtime.
package recognizer

import (
	"context"
	"regexp"

	"aegis/internal/normalize"
	"aegis/internal/span"
)

// Recognizer detects spans of one or more entity types in text.
type Recognizer interface {
	// EntityTypes returns the entity type labels this recognizer can emit.
	EntityTypes() []string
	// Detect returns the spans found in text for the given language.
	Detect(text string, language string) ([]span.Span, error)
}

// EntityAnalyzer is the pluggable model-based NER capability. The core is
// indifferent to the backend: a local model, a remote inference service,
// or (as shipped here) a deterministic rule-based stand-in. See
// SPEC_FULL.md's "EntityAnalyzer capability" note.
type EntityAnalyzer interface {
	Analyze(ctx context.Context, text string, language string) ([]span.Span, error)
}

// regexRecognizer is a Recognizer backed by a single compiled pattern. If
// the pattern defines a "name" capture group, the group's range becomes
// the span instead of the full match — e.g. a title cue like "Patient "
// can anchor the match without itself being tokenized.
type regexRecognizer struct {
	id         string
	entityType string
	re         *regexp.Regexp
	confidence float64
	groupIdx   int // re.SubexpIndex("name"); -1 if the pattern has no such group
}

func (r *regexRecognizer) EntityTypes() []string { return []string{r.entityType} }

func (r *regexRecognizer) Detect(text string, _ string) ([]span.Span, error) {
	byteToRune := byteOffsetIndex(text)

	var spans []span.Span
	for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
		startByte, endByte := loc[0], loc[1]
		if r.groupIdx > 0 {
			gs, ge := loc[2*r.groupIdx], loc[2*r.groupIdx+1]
			if gs != -1 && ge != -1 {
				startByte, endByte = gs, ge
			}
		}
		start := byteToRune[startByte]
		end := byteToRune[endByte]
		if start == end {
			continue // degenerate match; never emitted by well-formed patterns
		}
		spans = append(spans, span.Span{
			Start:        start,
			End:          end,
			EntityType:   r.entityType,
			Confidence:   r.confidence,
			RecognizerID: r.id,
		})
	}
	return spans, nil
}

// byteOffsetIndex maps a byte offset in s to the rune index of the rune
// starting at (or immediately after, for the end-of-string sentinel) that
// offset. Spans are expressed in rune offsets throughout Aegis so they
// remain stable across multi-byte characters; regexp match indices are
// byte offsets, so every regex-backed recognizer must translate.
func byteOffsetIndex(s string) map[int]int {
	idx := make(map[int]int, len(s)+1)
	runeIdx := 0
	for byteIdx := range s {
		idx[byteIdx] = runeIdx
		runeIdx++
	}
	idx[len(s)] = runeIdx
	return idx
}

// NewRegexRecognizer constructs a Recognizer from a single pattern. id
// should be stable and unique across the registry; it becomes the span's
// RecognizerID and is used by the resolver's tie-break rules (§4.C).
func NewRegexRecognizer(id, entityType, expr string, confidence float64) (Recognizer, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &regexRecognizer{
		id: id, entityType: entityType, re: re, confidence: confidence,
		groupIdx: re.SubexpIndex("name"),
	}, nil
}

// MustRegexRecognizer is like NewRegexRecognizer but panics on a bad
// pattern. Intended for the built-in table, where the patterns are
// constants checked once at package init.
func MustRegexRecognizer(id, entityType, expr string, confidence float64) Recognizer {
	r, err := NewRegexRecognizer(id, entityType, expr, confidence)
	if err != nil {
		panic(err)
	}
	return r
}

// Registry holds an ordered collection of recognizers plus an optional
// model-based EntityAnalyzer, and exposes Analyze (§4.A): the union of all
// enabled recognizers' spans, filtered by policy.EntityTypes. No
// deduplication happens here; that's the Span Resolver's job (§4.C).
type Registry struct {
	recognizers []Recognizer
	analyzer    EntityAnalyzer // nil = rule-based only
	knownTypes  map[string]bool
}

// NewRegistry returns a Registry seeded with the built-in recognizers
// (§4.A: PERSON, EMAIL_ADDRESS, PHONE_NUMBER, IP_ADDRESS, DATE_TIME, URL,
// CREDIT_CARD, US_SSN) and the required custom recognizers (MRN,
// PROTOCOL_ID, LOT_NUMBER, GENE_SEQUENCE, CHEMICAL_CAS, SECRET_KEY).
// It is read-mostly after construction and safe for concurrent Analyze
// calls, matching §5's "initialized once at startup... shared across all
// sessions without mutation after init."
func NewRegistry() *Registry {
	r := &Registry{knownTypes: make(map[string]bool)}
	for _, rec := range builtins() {
		r.Register(rec)
	}
	for _, rec := range customs() {
		r.Register(rec)
	}
	return r
}

// Register adds a recognizer to the registry, recording its entity types
// as "known" for policy validation (§4.H).
func (r *Registry) Register(rec Recognizer) {
	r.recognizers = append(r.recognizers, rec)
	for _, t := range rec.EntityTypes() {
		r.knownTypes[t] = true
	}
}

// SetAnalyzer installs a model-based EntityAnalyzer. Pass nil to fall back
// to rule-based recognizers only.
func (r *Registry) SetAnalyzer(a EntityAnalyzer) { r.analyzer = a }

// KnownEntityTypes returns the set of entity type labels this registry can
// emit, for the Policy Validator (§4.H).
func (r *Registry) KnownEntityTypes() []string {
	out := make([]string, 0, len(r.knownTypes))
	for t := range r.knownTypes {
		out = append(out, t)
	}
	return out
}

// enabled reports whether entityType should run, given allowedTypes (a
// policy.EntityTypes list; empty means "all known").
func enabled(entityType string, allowedTypes []string) bool {
	if len(allowedTypes) == 0 {
		return true
	}
	for _, t := range allowedTypes {
		if t == entityType {
			return true
		}
	}
	return false
}

// Analyze runs every enabled recognizer (and the model-based analyzer, if
// installed) over text and returns the union of their spans, unresolved.
func (r *Registry) Analyze(ctx context.Context, text, language string, allowedTypes []string) ([]span.Span, error) {
	var out []span.Span
	for _, rec := range r.recognizers {
		anyEnabled := false
		for _, t := range rec.EntityTypes() {
			if enabled(t, allowedTypes) {
				anyEnabled = true
				break
			}
		}
		if !anyEnabled {
			continue
		}
		spans, err := rec.Detect(text, language)
		if err != nil {
			return nil, err
		}
		for _, s := range spans {
			if enabled(s.EntityType, allowedTypes) {
				out = append(out, s)
			}
		}
	}

	if r.analyzer != nil {
		spans, err := r.analyzer.Analyze(ctx, text, language)
		if err != nil {
			return nil, err
		}
		for _, s := range spans {
			if enabled(s.EntityType, allowedTypes) {
				out = append(out, s)
			}
		}
	}

	return out, nil
}

// FilterAllowList removes spans whose normalized surface text is present
// in allowSet (itself produced by AegisPolicy.NormalizeAllowList), per
// spec.md §4.B. text must be the same string the spans were computed
// against.
func FilterAllowList(spans []span.Span, text string, allowSet map[string]bool, language string) []span.Span {
	if len(allowSet) == 0 {
		return spans
	}
	runes := []rune(text)
	out := make([]span.Span, 0, len(spans))
	for _, s := range spans {
		surface := s.Surface(runes)
		if allowSet[normalize.Fold(surface, language)] {
			continue
		}
		out = append(out, s)
	}
	return out
}
