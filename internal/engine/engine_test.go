package engine

import (
	"context"
	"testing"
	"time"

	"aegis/internal/config"
	"aegis/internal/logger"
	"aegis/internal/metrics"
	"aegis/internal/policy"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := &config.Config{
		VaultRootKey:        "test-root-key-not-for-production",
		VaultTTLSeconds:     900,
		VaultMaxSessions:    1000,
		SweepIntervalSecs:   3600,
		SanitizeTimeoutSec:  5,
		AsyncWorkerPoolSize: 4,
	}
	e, err := New(cfg, metrics.New(), logger.New("TEST", "error"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestSanitizeThenDesanitizeRoundTrips(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: policy.ModeReplace}

	sanRes, err := e.Sanitize(context.Background(), "sess-1", "Email alice@example.com now.", p)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if sanRes.SpansFound != 1 {
		t.Fatalf("SpansFound = %d, want 1", sanRes.SpansFound)
	}

	revRes, err := e.Desanitize(context.Background(), "sess-1", sanRes.Text, true)
	if err != nil {
		t.Fatalf("Desanitize: %v", err)
	}
	if revRes.Text != "Email alice@example.com now." {
		t.Errorf("round trip failed, got %q", revRes.Text)
	}
}

func TestSanitizeInvalidPolicyReturnsPolicyInvalid(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: "BOGUS_MODE"}

	_, err := e.Sanitize(context.Background(), "sess-1", "hello", p)
	if err == nil {
		t.Fatal("expected an error for an invalid mode")
	}
	var engErr *Error
	if !asEngineError(err, &engErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if engErr.Kind != KindPolicyInvalid {
		t.Errorf("Kind = %v, want KindPolicyInvalid", engErr.Kind)
	}
}

func TestDesanitizeUnauthorizedLeavesTokenInPlace(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Desanitize(context.Background(), "sess-1", "[EMAIL_A]", false)
	if err != nil {
		t.Fatalf("Desanitize: %v", err)
	}
	if res.Text != "[EMAIL_A]" {
		t.Errorf("Text = %q, want the token left in place", res.Text)
	}
	if res.Resolved != 0 || res.Missed != 1 {
		t.Errorf("Resolved=%d Missed=%d, want 0 and 1", res.Resolved, res.Missed)
	}
}

func TestSanitizePersonAndDateTimeRoundTripUnderDefaultPolicy(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: policy.ModeReplace}

	sanRes, err := e.Sanitize(context.Background(), "sess-1", "Patient John Doe (DOB: 12/01/1980) has a rash.", p)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	want := "Patient [PATIENT_A] (DOB: [DATE_A]) has a rash."
	if sanRes.Text != want {
		t.Fatalf("Text = %q, want %q", sanRes.Text, want)
	}
	if sanRes.SpansFound != 2 {
		t.Errorf("SpansFound = %d, want 2", sanRes.SpansFound)
	}

	revRes, err := e.Desanitize(context.Background(), "sess-1", sanRes.Text, true)
	if err != nil {
		t.Fatalf("Desanitize: %v", err)
	}
	if revRes.Text != "Patient John Doe (DOB: 12/01/1980) has a rash." {
		t.Errorf("round trip failed, got %q", revRes.Text)
	}
}

func TestSanitizePersonOrdinalConsistentAcrossCalls(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: policy.ModeReplace}

	if _, err := e.Sanitize(context.Background(), "sess-1", "Patient John Doe (DOB: 12/01/1980) has a rash.", p); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	sanRes, err := e.Sanitize(context.Background(), "sess-1", "John Doe returned.", p)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	want := "[PATIENT_A] returned."
	if sanRes.Text != want {
		t.Errorf("Text = %q, want %q (ordinal reused for the same person)", sanRes.Text, want)
	}
	if sanRes.TokensReused != 1 {
		t.Errorf("TokensReused = %d, want 1", sanRes.TokensReused)
	}
}

func TestSanitizeSecondDistinctPersonGetsNextOrdinal(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: policy.ModeReplace}

	if _, err := e.Sanitize(context.Background(), "sess-1", "Patient John Doe (DOB: 12/01/1980) has a rash.", p); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	// Ordinals are tracked per (session, entity_type): DATE_TIME having
	// already consumed "A" in the first call does not advance PERSON's
	// own sequence, so the second distinct person is PATIENT_B.
	sanRes, err := e.Sanitize(context.Background(), "sess-1", "Jane Smith met John Doe.", p)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	want := "[PATIENT_B] met [PATIENT_A]."
	if sanRes.Text != want {
		t.Errorf("Text = %q, want %q", sanRes.Text, want)
	}
}

func TestSanitizeAllowListExemptsMatchedSurface(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: policy.ModeReplace, AllowList: []string{"Tylenol"}}

	sanRes, err := e.Sanitize(context.Background(), "sess-1", "Give Tylenol to John Doe.", p)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	want := "Give Tylenol to [PATIENT_A]."
	if sanRes.Text != want {
		t.Errorf("Text = %q, want %q", sanRes.Text, want)
	}
}

func TestPurgeRemovesSessionMappings(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: policy.ModeReplace}

	sanRes, err := e.Sanitize(context.Background(), "sess-1", "Email alice@example.com now.", p)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	if !e.Purge("sess-1") {
		t.Fatal("Purge should report the session was present")
	}

	revRes, err := e.Desanitize(context.Background(), "sess-1", sanRes.Text, true)
	if err != nil {
		t.Fatalf("Desanitize: %v", err)
	}
	if revRes.Missed != 1 {
		t.Errorf("Missed = %d, want 1 after purge", revRes.Missed)
	}
}

func TestHealthReportsActiveSessions(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: policy.ModeReplace}

	if _, err := e.Sanitize(context.Background(), "sess-1", "hi bob@example.com", p); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	h := e.Health()
	if !h.Ready {
		t.Error("expected Ready = true")
	}
	if h.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, want 1", h.ActiveSessions)
	}
}

func TestMetricsSnapshotReflectsActivity(t *testing.T) {
	e := newTestEngine(t)
	p := policy.AegisPolicy{Mode: policy.ModeReplace}

	if _, err := e.Sanitize(context.Background(), "sess-1", "hi carol@example.com", p); err != nil {
		t.Fatalf("Sanitize: %v", err)
	}

	snap := e.MetricsSnapshot()
	if snap.Calls.Sanitize != 1 {
		t.Errorf("Calls.Sanitize = %d, want 1", snap.Calls.Sanitize)
	}
	if snap.Vault.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, want 1", snap.Vault.ActiveSessions)
	}
}

func TestAsyncSanitizerBoundsConcurrency(t *testing.T) {
	e := newTestEngine(t)
	a := NewAsyncSanitizer(e, 2)
	p := policy.AegisPolicy{Mode: policy.ModeReplace}

	chans := make([]<-chan SanitizeAsyncResult, 0, 5)
	for i := 0; i < 5; i++ {
		chans = append(chans, a.Sanitize(context.Background(), "sess-1", "dan@example.com", p))
	}

	for _, c := range chans {
		select {
		case res := <-c:
			if res.Err != nil {
				t.Errorf("async Sanitize: %v", res.Err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for async Sanitize result")
		}
	}
}

// asEngineError is errors.As wired for *Error, kept local to avoid an
// import cycle concern between this test file and the errors package (it
// has none, but this keeps the test body uncluttered).
func asEngineError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
