package recognizer

import (
	"context"
	"regexp"

	"aegis/internal/span"
)

// nullAnalyzer never finds anything. Useful for deterministic tests and
// for deployments that want rule-based recognizers only.
type nullAnalyzer struct{}

// NullAnalyzer returns an EntityAnalyzer that emits no spans. It exists so
// callers can explicitly opt out of model-based NER (registry.SetAnalyzer
// is nil-safe too; NullAnalyzer is for call sites that want an explicit,
// non-nil value to pass around).
func NullAnalyzer() EntityAnalyzer { return nullAnalyzer{} }

func (nullAnalyzer) Analyze(context.Context, string, string) ([]span.Span, error) {
	return nil, nil
}

// personNamePattern is a broader, lower-confidence capitalized-name cue
// than the built-in title-prefixed recognizer. It stands in for the "model-
// based NER" component (spec.md §1) the core is specified to consume but
// not define: a real deployment injects a model-backed EntityAnalyzer via
// Registry.SetAnalyzer; this implementation fulfills the same interface
// deterministically so the pipeline is fully exercised without hosting
// actual model weights (an explicit Non-goal).
var personNamePattern = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)

// regexAnalyzer is a deterministic stand-in EntityAnalyzer. It recognizes
// bare two-word capitalized names as PERSON, at a confidence below the
// title-cued builtin recognizer's (so the Span Resolver's tie-break
// genuinely reconciles the two sources when both fire on the same name)
// but still at or above policy.DefaultConfidence — a caller running with
// default settings must still detect PERSON spans that carry no title.
type regexAnalyzer struct {
	confidence float64
}

// NewRegexAnalyzer returns a deterministic EntityAnalyzer suitable for
// tests and for deployments without a real NER backend. confidence should
// typically sit below the built-in recognizers' scores so a genuine
// model-backed analyzer (once substituted in) changes resolver outcomes
// meaningfully rather than the analyzer dominating by construction.
func NewRegexAnalyzer(confidence float64) EntityAnalyzer {
	return &regexAnalyzer{confidence: confidence}
}

func (a *regexAnalyzer) Analyze(_ context.Context, text, _ string) ([]span.Span, error) {
	byteToRune := byteOffsetIndex(text)
	var spans []span.Span
	for _, loc := range personNamePattern.FindAllStringIndex(text, -1) {
		start, end := byteToRune[loc[0]], byteToRune[loc[1]]
		if start == end {
			continue
		}
		spans = append(spans, span.Span{
			Start:        start,
			End:          end,
			EntityType:   EntityPerson,
			Confidence:   a.confidence,
			RecognizerID: "analyzer.regex.person",
		})
	}
	return spans, nil
}
