// Package policy defines AegisPolicy, the per-call configuration accepted
// by the Sanitize pipeline, and its validator.
//
// Shape mirrors internal/config's layered-defaults convention: a struct of
// recognized options plus a Validate/WithDefaults pair, rather than the
// dynamic attribute-based configuration the source system used.
package policy

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"aegis/internal/normalize"
)

// Mode is the tagged RedactionMode variant of spec.md §3.
type Mode string

// Supported redaction modes.
const (
	ModeMask      Mode = "MASK"
	ModeReplace   Mode = "REPLACE"
	ModeSynthetic Mode = "SYNTHETIC"
	ModeHash      Mode = "HASH"
)

func (m Mode) valid() bool {
	switch m {
	case ModeMask, ModeReplace, ModeSynthetic, ModeHash:
		return true
	default:
		return false
	}
}

// DefaultConfidence is the confidence threshold applied when a policy
// does not specify one.
const DefaultConfidence = 0.85

// DefaultLanguage is the locale tag applied when a policy does not specify
// one.
const DefaultLanguage = "en"

// AegisPolicy is immutable configuration governing one Sanitize call. The zero value is not valid; use New or WithDefaults.
type AegisPolicy struct {
	AllowList       []string
	EntityTypes     []string // empty = "all known"
	Mode            Mode
	ConfidenceScore float64
	Language        string
}

// New returns the default policy: REPLACE mode, 0.85 confidence, "en",
// no allow-list, all known entity types.
func New() AegisPolicy {
	return AegisPolicy{
		Mode:            ModeReplace,
		ConfidenceScore: DefaultConfidence,
		Language:        DefaultLanguage,
	}
}

// WithDefaults fills unset fields of p with defaults, matching
// internal/config's "defaults, then override" layering.
func WithDefaults(p AegisPolicy) AegisPolicy {
	if p.Mode == "" {
		p.Mode = ModeReplace
	}
	if p.ConfidenceScore == 0 {
		p.ConfidenceScore = DefaultConfidence
	}
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	return p
}

// Validator validates policies against a registry of known entity type
// labels (built-in plus dynamically registered custom recognizers), per
// spec.md §4.H.
type Validator struct {
	knownTypes map[string]bool
}

// NewValidator returns a Validator that accepts the given entity type
// labels (case-sensitive, as emitted by recognizers).
func NewValidator(knownTypes []string) *Validator {
	v := &Validator{knownTypes: make(map[string]bool, len(knownTypes))}
	for _, t := range knownTypes {
		v.knownTypes[t] = true
	}
	return v
}

// Validate checks p against the known-type registry and recognized field
// constraints, returning a descriptive error on the first violation found.
// It does not mutate p; callers should call WithDefaults first if they
// want missing fields filled before validation.
func (v *Validator) Validate(p AegisPolicy) error {
	if p.ConfidenceScore < 0.0 || p.ConfidenceScore > 1.0 {
		return fmt.Errorf("policy: confidence_score %v out of range [0.0, 1.0]", p.ConfidenceScore)
	}
	if p.Mode == "" {
		return fmt.Errorf("policy: mode must not be empty")
	}
	if !p.Mode.valid() {
		return fmt.Errorf("policy: unrecognized mode %q", p.Mode)
	}
	for _, t := range p.EntityTypes {
		if !v.knownTypes[t] {
			return fmt.Errorf("policy: unknown entity type %q", t)
		}
	}
	if p.Language != "" {
		if _, err := language.Parse(p.Language); err != nil {
			return fmt.Errorf("policy: invalid language tag %q: %w", p.Language, err)
		}
	}
	return nil
}

// EntityTypeAllowed reports whether entityType should be considered given
// p.EntityTypes. An empty EntityTypes list means "all known types".
func (p AegisPolicy) EntityTypeAllowed(entityType string) bool {
	if len(p.EntityTypes) == 0 {
		return true
	}
	for _, t := range p.EntityTypes {
		if t == entityType {
			return true
		}
	}
	return false
}

// NormalizeAllowList returns p.AllowList normalized (NFC + case-folded) for
// O(1) membership tests, matching the "constant-time after one-shot set
// construction" requirement of spec.md §4.B.
func (p AegisPolicy) NormalizeAllowList() map[string]bool {
	out := make(map[string]bool, len(p.AllowList))
	for _, v := range p.AllowList {
		out[normalize.Fold(v, p.Language)] = true
	}
	return out
}

// String renders the mode for logging.
func (m Mode) String() string { return strings.ToUpper(string(m)) }
