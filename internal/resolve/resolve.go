// Package resolve implements the Span Resolver (spec.md §4.C): given the
// raw union of spans the registry found, produce a non-overlapping,
// ordered sequence ready for tokenization.
//
// No teacher analog exists for this stage — internal/anonymizer/
// anonymizer.go runs each pattern independently via
// regexp.ReplaceAllStringFunc and never reconciles overlaps between
// patterns, which is exactly the gap this spec closes. Built fresh on
// stdlib sort only.
package resolve

import (
	"fmt"
	"sort"

	"aegis/internal/span"
)

// priorityOrder is the entity-type tie-break order of spec.md §4.C rule 2:
// "higher-priority entity type". Types not listed fall back to
// alphabetical order, after all listed types.
var priorityOrder = map[string]int{
	"SECRET_KEY":    0,
	"US_SSN":        1,
	"MRN":           2,
	"CREDIT_CARD":   3,
	"EMAIL_ADDRESS": 4,
	"PHONE_NUMBER":  5,
	"IP_ADDRESS":    6,
	"PERSON":        7,
	"DATE_TIME":     8,
	"URL":           9,
}

func priority(entityType string) int {
	if p, ok := priorityOrder[entityType]; ok {
		return p
	}
	return len(priorityOrder) // "others alphabetically", after every named type
}

// Resolve applies spec.md §4.C's resolution rules in order:
//  1. Drop spans with confidence < minConfidence.
//  2. For overlapping spans, keep the highest-confidence one; ties break
//     by longer span, then higher-priority entity type, then earlier
//     start, then lexicographic recognizer ID.
//  3. Sort the survivors ascending by start.
//
// textLen is the rune length of the text the spans were computed against.
// A span that fails Span.Validate against it — zero-length, negative, or
// out of bounds — is an invariant violation and returns an error rather
// than being silently dropped, per §4.C's "fail-closed" edge case.
func Resolve(spans []span.Span, minConfidence float64, textLen int) ([]span.Span, error) {
	candidates := make([]span.Span, 0, len(spans))
	for _, s := range spans {
		if err := s.Validate(textLen); err != nil {
			return nil, fmt.Errorf("resolve: %w", err)
		}
		if s.Confidence < minConfidence {
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Sort best-first under the full tie-break order, then sweep greedily:
	// a candidate survives only if it overlaps nothing already accepted.
	// Because "better" is a strict total order, every already-accepted
	// span outranks every not-yet-seen candidate, so the first winner
	// claimed for any contested region is final.
	sort.Slice(candidates, func(i, j int) bool {
		return better(candidates[i], candidates[j])
	})

	var resolved []span.Span
	for _, c := range candidates {
		overlapped := false
		for _, r := range resolved {
			if r.Overlaps(c) {
				overlapped = true
				break
			}
		}
		if !overlapped {
			resolved = append(resolved, c)
		}
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].Start < resolved[j].Start })
	return resolved, nil
}

// better reports whether a should win over b under spec.md §4.C rule 2's
// tie-break chain: higher confidence; then longer span; then
// higher-priority entity type; then earlier start; then lexicographic
// recognizer ID.
func better(a, b span.Span) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Len() != b.Len() {
		return a.Len() > b.Len()
	}
	pa, pb := priority(a.EntityType), priority(b.EntityType)
	if pa != pb {
		return pa < pb
	}
	if pa == len(priorityOrder) && a.EntityType != b.EntityType {
		return a.EntityType < b.EntityType // "others alphabetically"
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.RecognizerID < b.RecognizerID
}
