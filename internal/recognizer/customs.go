package recognizer

import "regexp"

// Custom recognizers required by spec.md §4.A: MRN, PROTOCOL_ID,
// LOT_NUMBER, GENE_SEQUENCE, CHEMICAL_CAS, SECRET_KEY. All custom
// recognizers emit confidence >= 0.9 (rule-based certainty), per the
// spec's explicit requirement.
//
// defaultMRNPrefix mirrors the "configurable prefix + 6-10 digits" MRN
// shape; callers needing a different prefix should register their own
// recognizer via Registry.Register(NewMRNRecognizer(prefix)) instead of
// relying on the built-in default.
const defaultMRNPrefix = "MRN"

func customs() []Recognizer {
	return []Recognizer{
		mustMRNRecognizer(defaultMRNPrefix),

		// Protocol ID: "PROTOCOL-" or "PROTO-" followed by an alphanumeric
		// identifier, as used in clinical trial documentation.
		MustRegexRecognizer("custom.protocol_id", EntityProtocolID,
			`\b(?:PROTOCOL|PROTO)[-_][A-Z0-9]{4,12}\b`, 0.92),

		// Lot number: "LOT" / "LOT#" / "LOT NO" followed by an alphanumeric
		// batch code.
		MustRegexRecognizer("custom.lot_number", EntityLotNumber,
			`(?i)\bLOT\s*(?:#|NO\.?|NUMBER)?\s*:?\s*[A-Z0-9]{4,12}\b`, 0.90),

		// Gene sequence: a run of 12+ nucleotide bases (A/C/G/T/U), long
		// enough to exclude incidental short matches like codons in prose.
		MustRegexRecognizer("custom.gene_sequence", EntityGeneSequence,
			`\b[ACGTU]{12,}\b`, 0.92),

		// Chemical CAS registry number: NNNNNNN-NN-N format (2-7, 2, 1
		// digit groups).
		MustRegexRecognizer("custom.chemical_cas", EntityChemicalCAS,
			`\b\d{2,7}-\d{2}-\d\b`, 0.93),

		// Secret key: sk-... API keys, JWT prefix, AWS access key IDs.
		MustRegexRecognizer("custom.secret_key.sk", EntitySecretKey,
			`\bsk-[A-Za-z0-9]{20,}\b`, 0.95),
		MustRegexRecognizer("custom.secret_key.jwt", EntitySecretKey,
			`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`, 0.95),
		MustRegexRecognizer("custom.secret_key.aws", EntitySecretKey,
			`\bAKIA[0-9A-Z]{16}\b`, 0.95),
	}
}

// NewMRNRecognizer returns a Recognizer matching medical record numbers of
// the form prefix + 6-10 digits (spec.md §4.A: "configurable prefix +
// 6-10 digits").
func NewMRNRecognizer(prefix string) Recognizer {
	r, err := NewRegexRecognizer("custom.mrn."+prefix, EntityMRN,
		`\b`+regexp.QuoteMeta(prefix)+`[-_]?\d{6,10}\b`, 0.92)
	if err != nil {
		panic(err)
	}
	return r
}

func mustMRNRecognizer(prefix string) Recognizer {
	return NewMRNRecognizer(prefix)
}
