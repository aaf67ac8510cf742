// Package normalize applies the Unicode normalization and case-folding
// contract required throughout spec.md §4: surfaces are NFC-normalized and
// case-folded before allow-list membership tests (§4.B), and
// NFC-normalized and trimmed of trailing whitespace, without case-folding,
// before tokenizer map lookups (§4.D).
//
// golang.org/x/text/unicode/norm and golang.org/x/text/cases arrive
// transitively through golang.org/x/net but were never imported directly
// by anything upstream; this package is where that dependency earns its
// keep.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// folder performs locale-independent Unicode case folding, the comparison
// form recommended by UTS #30 for caseless matching (the allow-list test
// of spec.md §4.B is a caseless match, not display casing, so cases.Fold
// rather than cases.Lower(tag) is the correct tool).
var folder = cases.Fold()

// Fold returns s normalized to NFC and case-folded. lang is accepted for
// interface symmetry with callers that carry a policy language tag, but
// Unicode case folding is intentionally locale-independent: the one
// locale-sensitive case operation (Turkish dotless i) is a display-casing
// concern, not a caseless-matching one.
func Fold(s, _ string) string {
	return folder.String(norm.NFC.String(s))
}

// TrimTrailingSpace trims trailing whitespace, per the tokenizer's
// normalization contract ("NFC-normalized and trimmed of trailing
// whitespace before mapping lookup").
func TrimTrailingSpace(s string) string {
	return strings.TrimRight(s, " \t\r\n\v\f")
}

// NFC normalizes s to Unicode Normalization Form C without case-folding,
// used when the original casing must be preserved (e.g. the raw surface
// stored in the Vault).
func NFC(s string) string {
	return norm.NFC.String(s)
}
