package recognizer

// Built-in recognizers, per spec.md §4.A: PERSON, EMAIL_ADDRESS,
// PHONE_NUMBER, IP_ADDRESS, DATE_TIME, URL, CREDIT_CARD, US_SSN.
//
// Confidence scores follow anonymizer.go's compilePatterns convention
// (0.90+ highly specific / 0.70-0.89 moderately specific / below 0.70
// broad with false-positive risk) and, where the entity type overlaps one
// of its patterns, its own score.
//
// PERSON has no strong structural regex (unlike EMAIL or SSN); the
// title-cued pattern below is deliberately narrow (a title word is a rare
// false-positive trigger) so it can carry confidence above
// policy.DefaultConfidence on its own, while the pluggable EntityAnalyzer
// (see analyzer.go) covers bare names. Both must clear the default
// confidence threshold: spec.md §4.C drops every span below
// policy.confidence_score before resolution ever sees it, and §8's worked
// examples tokenize PERSON spans under the default policy, so neither
// PERSON source can sit below 0.85 without silently losing every PERSON
// span under default settings.

const (
	EntityPerson       = "PERSON"
	EntityEmail        = "EMAIL_ADDRESS"
	EntityPhone        = "PHONE_NUMBER"
	EntityIPAddress    = "IP_ADDRESS"
	EntityDateTime     = "DATE_TIME"
	EntityURL          = "URL"
	EntityCreditCard   = "CREDIT_CARD"
	EntitySSN          = "US_SSN"
	EntityMRN          = "MRN"
	EntityProtocolID   = "PROTOCOL_ID"
	EntityLotNumber    = "LOT_NUMBER"
	EntityGeneSequence = "GENE_SEQUENCE"
	EntityChemicalCAS  = "CHEMICAL_CAS"
	EntitySecretKey    = "SECRET_KEY"
)

func builtins() []Recognizer {
	return []Recognizer{
		// Person: a narrow "title + capitalized name" cue. The title word
		// is a strong structural marker (unlike a bare capitalized pair),
		// so this clears the default confidence threshold on its own; the
		// pluggable EntityAnalyzer covers names with no title cue. Only the
		// "name" group is tokenized — the title itself stays in the
		// output text untouched.
		MustRegexRecognizer("builtin.person.title", EntityPerson,
			`\b(?:Mr|Mrs|Ms|Dr|Patient|Prof)\.?\s+(?P<name>[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`, 0.92),

		// Email: unambiguous structural markers (@, domain, TLD).
		MustRegexRecognizer("builtin.email", EntityEmail,
			`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, 0.95),

		// IPv6 before IPv4/phone: RFC 5952 compressed and uncompressed
		// forms, alternation ordered longest-first so greedy matching picks
		// the most complete address.
		MustRegexRecognizer("builtin.ip.v6", EntityIPAddress,
			`(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}`+
				`|(?:[0-9a-fA-F]{1,4}:){1,7}:`+
				`|(?:[0-9a-fA-F]{1,4}:){1,6}:[0-9a-fA-F]{1,4}`+
				`|(?:[0-9a-fA-F]{1,4}:){1,5}(?::[0-9a-fA-F]{1,4}){1,2}`+
				`|(?:[0-9a-fA-F]{1,4}:){1,4}(?::[0-9a-fA-F]{1,4}){1,3}`+
				`|(?:[0-9a-fA-F]{1,4}:){1,3}(?::[0-9a-fA-F]{1,4}){1,4}`+
				`|(?:[0-9a-fA-F]{1,4}:){1,2}(?::[0-9a-fA-F]{1,4}){1,5}`+
				`|[0-9a-fA-F]{1,4}:(?::[0-9a-fA-F]{1,4}){1,6}`+
				`|:(?::[0-9a-fA-F]{1,4}){1,7}`+
				`|::`, 0.85),
		MustRegexRecognizer("builtin.ip.v4", EntityIPAddress,
			`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`, 0.70),

		// Phone: broad numeric-sequence pattern, low confidence.
		MustRegexRecognizer("builtin.phone", EntityPhone,
			`(\+?1?[\-.\s]?)?\(?([0-9]{3})\)?[\-.\s]?([0-9]{3})[\-.\s]?([0-9]{4})`, 0.65),

		// Date/time: common US and ISO-8601 date shapes. As structural as
		// credit-card or SSN digit groupings, so it carries the same
		// confidence and clears the default threshold on its own.
		MustRegexRecognizer("builtin.datetime", EntityDateTime,
			`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`, 0.85),

		// URL: scheme + host.
		MustRegexRecognizer("builtin.url", EntityURL,
			`\bhttps?://[A-Za-z0-9.\-]+(?:/[^\s]*)?\b`, 0.90),

		// Credit card: 16-digit block pattern.
		MustRegexRecognizer("builtin.creditcard", EntityCreditCard,
			`\b(?:\d{4}[\-\s]?){3}\d{4}\b`, 0.85),

		// US SSN: structured hyphenated or 9-digit format.
		MustRegexRecognizer("builtin.ssn", EntitySSN,
			`\b(?:\d{3}-\d{2}-\d{4}|\d{9})\b`, 0.85),
	}
}
