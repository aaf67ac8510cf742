// Command aegis runs the Aegis bidirectional PII tokenization service: a
// REST API in front of the Sanitize and Reveal pipelines (spec.md §6).
//
// Configuration is layered (defaults → aegis-config.json → AEGIS_* env
// vars); AEGIS_VAULT_ROOT_KEY is required and has no default. The server
// only listens over TLS, so AEGIS_TLS_CERT_FILE and AEGIS_TLS_KEY_FILE are
// required as well.
//
// Usage:
//
//	AEGIS_VAULT_ROOT_KEY=$(openssl rand -hex 32) \
//	AEGIS_TLS_CERT_FILE=server.crt AEGIS_TLS_KEY_FILE=server.key ./aegis
//
//	# Custom port and management token (root key and TLS vars as above)
//	AEGIS_HTTP_PORT=9443 AEGIS_MANAGEMENT_TOKEN=secret ./aegis
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aegis/internal/config"
	"aegis/internal/engine"
	"aegis/internal/httpapi"
	"aegis/internal/logger"
	"aegis/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[AEGIS] Fatal: %v", err)
	}

	printBanner(cfg)

	lg := logger.New("AEGIS", cfg.LogLevel)
	m := metrics.New()

	eng, err := engine.New(cfg, m, lg)
	if err != nil {
		log.Fatalf("[AEGIS] Fatal: could not construct engine: %v", err)
	}
	defer eng.Close()

	srv := httpapi.New(cfg, eng, lg)

	certFile, keyFile := os.Getenv("AEGIS_TLS_CERT_FILE"), os.Getenv("AEGIS_TLS_KEY_FILE")
	if certFile == "" || keyFile == "" {
		log.Fatalf("[AEGIS] Fatal: AEGIS_TLS_CERT_FILE and AEGIS_TLS_KEY_FILE are required")
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServeTLS(certFile, keyFile)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		log.Fatalf("[AEGIS] Fatal: %v", err)
	case <-quit:
		log.Printf("[AEGIS] Shutting down…")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("[AEGIS] Shutdown error: %v", err)
		}
	}
}

func printBanner(cfg *config.Config) {
	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║                    Aegis  (Go)                        ║
╚══════════════════════════════════════════════════════╝
  HTTP port        : %d
  Vault TTL        : %ds
  Vault capacity   : %d sessions
  Sweep interval   : %ds
  Sanitize timeout : %ds
  Model            : %s
  Language         : %s

  Check status:
    curl -k https://localhost:%d/health
`, cfg.HTTPPort, cfg.VaultTTLSeconds, cfg.VaultMaxSessions, cfg.SweepIntervalSecs,
		cfg.SanitizeTimeoutSec, orNone(cfg.ModelName), cfg.Language, cfg.HTTPPort)
}

func orNone(s string) string {
	if s == "" {
		return "(none — rule-based recognizers only)"
	}
	return s
}
