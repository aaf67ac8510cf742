package tokenizer

import (
	"encoding/binary"
	"fmt"
	"math/rand"
)

// syntheticFirstNames and syntheticLastNames back the SYNTHETIC-mode
// surrogate generator for PERSON. A small fixed pool keeps the output
// deterministic and plausible without pulling in a dedicated fake-data
// library — SYNTHETIC is a one-way training-data convenience (spec.md
// §4.G), not a faithful PII replacement, so a bounded pool is sufficient.
var syntheticFirstNames = []string{
	"Alex", "Jordan", "Taylor", "Morgan", "Casey", "Riley", "Avery", "Quinn",
	"Dakota", "Reese", "Skyler", "Rowan", "Emerson", "Finley", "Hayden", "Parker",
}

var syntheticLastNames = []string{
	"Brooks", "Hayes", "Reed", "Foster", "Bennett", "Coleman", "Dawson", "Ellis",
	"Fleming", "Graham", "Holloway", "Ingram", "Jennings", "Keller", "Lawson", "Mercer",
}

var syntheticDomains = []string{"example.net", "mailbox.test", "inbox.example", "relay.test"}

// Synthesize returns a plausible surrogate value of the given entity type,
// deterministic for a given seed. Unknown entity types fall back to a
// generic "[<TYPE>-<n>]" surrogate so SYNTHETIC mode never fails for a type
// it doesn't have a dedicated generator for.
func Synthesize(entityType string, seed [32]byte) string {
	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(seed[:8])))) //nolint:gosec // deterministic surrogate, not security-sensitive

	switch entityType {
	case "PERSON":
		return fmt.Sprintf("%s %s",
			syntheticFirstNames[rng.Intn(len(syntheticFirstNames))],
			syntheticLastNames[rng.Intn(len(syntheticLastNames))])
	case "EMAIL_ADDRESS":
		return fmt.Sprintf("%s.%s@%s",
			lower(syntheticFirstNames[rng.Intn(len(syntheticFirstNames))]),
			lower(syntheticLastNames[rng.Intn(len(syntheticLastNames))]),
			syntheticDomains[rng.Intn(len(syntheticDomains))])
	case "PHONE_NUMBER":
		return fmt.Sprintf("555-%03d-%04d", rng.Intn(1000), rng.Intn(10000))
	case "US_SSN":
		return fmt.Sprintf("900-%02d-%04d", rng.Intn(100), rng.Intn(10000))
	case "IP_ADDRESS":
		return fmt.Sprintf("203.0.113.%d", rng.Intn(256))
	default:
		return fmt.Sprintf("[%s-%d]", entityType, rng.Intn(1_000_000))
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
