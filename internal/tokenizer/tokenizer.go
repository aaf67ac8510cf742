// Package tokenizer implements the Tokenizer (spec.md §4.D): deterministic,
// stable, context-preserving token generation across the four redaction
// modes, plus the ordinal-letter sequence and left-to-right rewrite pass.
//
// Grounded on internal/anonymizer/anonymizer.go's replacement() (a
// deterministic hash-based token per match) and AnonymizeText's single
// left-to-right ReplaceAllStringFunc-style rewrite, generalized from one
// mode (MD5-hash, 8 hex chars) to four modes and moved from MD5 to
// SHA-256 for HASH mode, which calls for a cryptographic digest rather
// than MD5's non-cryptographic token-shape role in the original.
package tokenizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"aegis/internal/normalize"
	"aegis/internal/policy"
	"aegis/internal/span"
)

// aliasPrefix maps an entity type to the token prefix used in REPLACE and
// MASK mode. PERSON uses the domain-specific "PATIENT_" alias (spec.md §9
// OQ2); EMAIL_ADDRESS uses "EMAIL_"; DATE_TIME uses "DATE_"; every other
// type uses its own uppercase name.
func aliasPrefix(entityType string) string {
	switch entityType {
	case "PERSON":
		return "PATIENT"
	case "EMAIL_ADDRESS":
		return "EMAIL"
	case "DATE_TIME":
		return "DATE"
	default:
		return entityType
	}
}

// NormalizeSurface applies the tokenizer's normalization contract: NFC,
// then trimmed of trailing whitespace, for use as a Vault lookup key. The
// raw (non-normalized) surface is what gets stored for exact re-insertion;
// see spec.md §4.D "the original raw surface is preserved in the Vault."
func NormalizeSurface(surface string) string {
	return normalize.TrimTrailingSpace(normalize.NFC(surface))
}

// Token renders the replacement token for one (entityType, ordinal) pair
// in MASK or REPLACE mode.
//
//   - MASK:    "[<ENTITY_TYPE>]"                 (ordinal ignored)
//   - REPLACE: "[<ENTITY_TYPE>_<ORDINAL>]"        ordinal is an Excel-style
//     letter sequence: A, B, ..., Z, AA, AB, ...
func Token(mode policy.Mode, entityType string, ordinal int) string {
	prefix := aliasPrefix(entityType)
	if mode == policy.ModeMask {
		return fmt.Sprintf("[%s]", strings.ToUpper(prefix))
	}
	return fmt.Sprintf("[%s_%s]", strings.ToUpper(prefix), OrdinalLetters(ordinal))
}

// HashToken renders the HASH-mode token: the first 16 hex characters of
// SHA-256(normalizedSurface). Not reversible by design (spec.md §4.D).
func HashToken(normalizedSurface string) string {
	sum := sha256.Sum256([]byte(normalizedSurface))
	return hex.EncodeToString(sum[:])[:16]
}

// SynthSeed returns the deterministic seed spec.md §4.D specifies for
// SYNTHETIC mode: SHA-256(session_id ‖ entity_type ‖ normalized_surface).
// The caller (the synthetic-value generator) uses this to seed a PRNG so
// repeated calls within a session yield the same surrogate.
func SynthSeed(sessionID, entityType, normalizedSurface string) [32]byte {
	return sha256.Sum256([]byte(sessionID + "\x00" + entityType + "\x00" + normalizedSurface))
}

// OrdinalLetters renders a 1-based ordinal as an Excel-style letter
// sequence: 1->A, 2->B, ..., 26->Z, 27->AA, 28->AB, ...
func OrdinalLetters(ordinal int) string {
	if ordinal < 1 {
		ordinal = 1
	}
	var letters []byte
	n := ordinal
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

// Rewrite assembles the output text by emitting interleaved text slices
// and token substitutions in a single left-to-right pass over runes, per
// spec.md §4.D's "single pass" rewriting rule. spans must be
// non-overlapping and sorted ascending by Start (the Span Resolver's
// contract); tokens[i] is the replacement for spans[i].
func Rewrite(text []rune, spans []span.Span, tokens []string) string {
	var b strings.Builder
	cursor := 0
	for i, s := range spans {
		b.WriteString(string(text[cursor:s.Start]))
		b.WriteString(tokens[i])
		cursor = s.End
	}
	b.WriteString(string(text[cursor:]))
	return b.String()
}
