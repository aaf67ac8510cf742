package resolve

import (
	"errors"
	"testing"

	"aegis/internal/span"
)

func TestResolveDropsBelowThreshold(t *testing.T) {
	spans := []span.Span{
		{Start: 0, End: 5, EntityType: "EMAIL_ADDRESS", Confidence: 0.60, RecognizerID: "a"},
	}
	resolved, err := Resolve(spans, 0.85, 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 0 {
		t.Errorf("resolved = %v, want none (below threshold)", resolved)
	}
}

func TestResolveKeepsHighestConfidenceOnOverlap(t *testing.T) {
	spans := []span.Span{
		{Start: 0, End: 5, EntityType: "PERSON", Confidence: 0.90, RecognizerID: "a"},
		{Start: 0, End: 5, EntityType: "PERSON", Confidence: 0.95, RecognizerID: "b"},
	}
	resolved, err := Resolve(spans, 0.85, 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 1 || resolved[0].RecognizerID != "b" {
		t.Errorf("resolved = %v, want the 0.95-confidence span", resolved)
	}
}

func TestResolveRejectsZeroLengthSpan(t *testing.T) {
	spans := []span.Span{{Start: 3, End: 3, EntityType: "PERSON", Confidence: 0.95}}
	_, err := Resolve(spans, 0.85, 10)
	if !errors.Is(err, span.ErrZeroLength) {
		t.Errorf("err = %v, want ErrZeroLength", err)
	}
}

func TestResolveRejectsOutOfBoundsSpan(t *testing.T) {
	spans := []span.Span{{Start: 0, End: 20, EntityType: "PERSON", Confidence: 0.95}}
	_, err := Resolve(spans, 0.85, 10)
	if err == nil {
		t.Fatal("expected an error for a span past textLen")
	}
}

func TestResolveSortsAscendingByStart(t *testing.T) {
	spans := []span.Span{
		{Start: 10, End: 15, EntityType: "EMAIL_ADDRESS", Confidence: 0.95, RecognizerID: "a"},
		{Start: 0, End: 5, EntityType: "PERSON", Confidence: 0.95, RecognizerID: "b"},
	}
	resolved, err := Resolve(spans, 0.85, 20)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resolved) != 2 || resolved[0].Start != 0 || resolved[1].Start != 10 {
		t.Errorf("resolved = %v, want sorted ascending by Start", resolved)
	}
}
