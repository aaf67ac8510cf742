package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aegis/internal/config"
	"aegis/internal/engine"
	"aegis/internal/logger"
	"aegis/internal/metrics"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	cfg := &config.Config{
		VaultRootKey:        "test-root-key-not-for-production",
		VaultTTLSeconds:     900,
		VaultMaxSessions:    1000,
		SweepIntervalSecs:   3600,
		SanitizeTimeoutSec:  5,
		AsyncWorkerPoolSize: 4,
		ManagementToken:     token,
	}
	eng, err := engine.New(cfg, metrics.New(), logger.New("TEST", "error"))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Close)
	return New(cfg, eng, logger.New("TEST", "error"))
}

func TestHandleSanitizeTokenizesEmail(t *testing.T) {
	s := newTestServer(t, "")
	body := `{"sessionId":"sess-1","text":"Email alice@example.com now.","policy":{"mode":"REPLACE"}}`

	req := httptest.NewRequest(http.MethodPost, "/sanitize", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp sanitizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.SpansFound != 1 {
		t.Errorf("SpansFound = %d, want 1", resp.SpansFound)
	}
	if resp.Text == "Email alice@example.com now." {
		t.Error("email should have been tokenized")
	}
}

func TestHandleSanitizeInvalidModeReturnsBadRequest(t *testing.T) {
	s := newTestServer(t, "")
	body := `{"sessionId":"sess-1","text":"hi","policy":{"mode":"NOT_A_MODE"}}`

	req := httptest.NewRequest(http.MethodPost, "/sanitize", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d, body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestSanitizeThenDesanitizeRoundTripsOverHTTP(t *testing.T) {
	s := newTestServer(t, "")
	sanBody := `{"sessionId":"sess-1","text":"Reach bob@example.com","policy":{"mode":"REPLACE"}}`

	req := httptest.NewRequest(http.MethodPost, "/sanitize", strings.NewReader(sanBody))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("sanitize status = %d: %s", rec.Code, rec.Body.String())
	}
	var sanResp sanitizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &sanResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	desBody, err := json.Marshal(desanitizeRequest{SessionID: "sess-1", Text: sanResp.Text, Authorized: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/desanitize", strings.NewReader(string(desBody)))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("desanitize status = %d: %s", rec.Code, rec.Body.String())
	}
	var desResp desanitizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &desResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if desResp.Text != "Reach bob@example.com" {
		t.Errorf("round trip failed, got %q", desResp.Text)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	s := newTestServer(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	s := newTestServer(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHealthBypassesAuth(t *testing.T) {
	s := newTestServer(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandlePurgeRemovesSession(t *testing.T) {
	s := newTestServer(t, "")
	sanBody := `{"sessionId":"sess-1","text":"Email alice@example.com","policy":{"mode":"REPLACE"}}`
	req := httptest.NewRequest(http.MethodPost, "/sanitize", strings.NewReader(sanBody))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("sanitize status = %d: %s", rec.Code, rec.Body.String())
	}

	purgeBody := `{"sessionId":"sess-1"}`
	req = httptest.NewRequest(http.MethodPost, "/purge", strings.NewReader(purgeBody))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("purge status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp["purged"] {
		t.Error("expected purged = true for a known session")
	}

	req = httptest.NewRequest(http.MethodPost, "/purge", strings.NewReader(purgeBody))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["purged"] {
		t.Error("expected purged = false for an already-purged session")
	}
}

func TestHandleDesanitizeUnauthorizedLeavesTokenInPlace(t *testing.T) {
	s := newTestServer(t, "")
	body := `{"sessionId":"sess-1","text":"[EMAIL_A]","authorized":false}`

	req := httptest.NewRequest(http.MethodPost, "/desanitize", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp desanitizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Text != "[EMAIL_A]" {
		t.Errorf("Text = %q, want the token left in place", resp.Text)
	}
	if resp.Resolved != 0 || resp.Missed != 1 {
		t.Errorf("Resolved=%d Missed=%d, want 0 and 1", resp.Resolved, resp.Missed)
	}
}
