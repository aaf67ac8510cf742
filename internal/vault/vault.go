// Package vault implements the Vault (spec.md §4.E): the encrypted,
// TTL-bounded, capacity-bounded store of forward (token -> surface) and
// reverse (entity_type, normalized_surface -> token) mappings, keyed by
// session.
//
// Grounded on internal/anonymizer/s3fifo_cache.go's container/list-based
// eviction bookkeeping (a list.Element per entry, moved on access, trimmed
// from the front on overflow) adapted from its multi-queue S3-FIFO policy
// down to a single-queue LRU, since spec.md §4.E calls for LRU eviction,
// not S3-FIFO admission. Its sessionMu sync.RWMutex guarding a
// map[string]map[string]string is kept for the top-level session table,
// generalized to per-session sync.Mutex granularity so concurrent readers
// of different sessions never block one another (spec.md §5). The
// bbolt-backed persistent tier (internal/anonymizer/cache.go) is dropped:
// spec.md §4.E is explicit that mappings never survive a process restart.
package vault

import (
	"container/list"
	"crypto/cipher"
	"errors"
	"fmt"
	"sync"
	"time"

	"aegis/internal/logger"
)

// Sentinel errors returned by Vault operations. The engine's Failure Gate
// (spec.md §4.I) maps these onto the public Error taxonomy.
var (
	ErrSessionNotFound  = errors.New("vault: session not found")
	ErrTTLExpired       = errors.New("vault: session ttl expired")
	ErrCapacityExceeded = errors.New("vault: session capacity exceeded")
)

// mapping is the plaintext payload encrypted at rest inside a
// sessionEntry. It exists in cleartext only transiently during
// read/modify/write (spec.md §4.E).
type mapping struct {
	// Forward maps an emitted token to the original raw surface text.
	Forward map[string]string
	// Reverse maps "entityType\x00normalizedSurface" to the token already
	// minted for that (type, value) pair, so a repeated PII value within a
	// session reuses its first token (spec.md §4.D "stability").
	Reverse map[string]string
	// Ordinals tracks the next REPLACE/MASK ordinal to mint per entity
	// type, so "[EMAIL_A]", "[EMAIL_B]", ... stay sequential and stable
	// across every Sanitize call within one session.
	Ordinals map[string]int
}

func newMapping() mapping {
	return mapping{
		Forward:  make(map[string]string),
		Reverse:  make(map[string]string),
		Ordinals: make(map[string]int),
	}
}

// sessionEntry holds one session's encrypted mapping plus its bookkeeping.
// Its mutex serializes read-modify-write access to the encrypted blob
// independent of every other session's lock.
type sessionEntry struct {
	mu         sync.Mutex
	sessionID  string
	encrypted  []byte
	expiresAt  time.Time
	lruElement *list.Element
}

// Vault is the process-wide encrypted session store. Zero value is not
// usable; construct with New.
type Vault struct {
	tableMu sync.RWMutex
	entries map[string]*sessionEntry
	lru     *list.List // front = least recently used, back = most recently used

	aead cipher.AEAD

	ttl         time.Duration
	maxSessions int
	log         *logger.Logger

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

// Config configures Vault construction, mirroring the AEGIS_VAULT_* env
// vars documented in SPEC_FULL.md's Configuration section.
type Config struct {
	RootKey       []byte        // AEGIS_VAULT_ROOT_KEY, required, any length
	TTL           time.Duration // AEGIS_VAULT_TTL_SECONDS
	MaxSessions   int           // AEGIS_VAULT_MAX_SESSIONS
	SweepInterval time.Duration // AEGIS_SWEEP_INTERVAL_SECONDS
	Logger        *logger.Logger
}

// New constructs a Vault and starts its background TTL sweeper. Call
// Close to stop the sweeper when the Vault is no longer needed.
func New(cfg Config) (*Vault, error) {
	if len(cfg.RootKey) == 0 {
		return nil, fmt.Errorf("vault: root key is required")
	}
	salt := make([]byte, 32)
	if _, err := readRandom(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}
	key, err := deriveKey(cfg.RootKey, salt)
	if err != nil {
		return nil, err
	}
	dataKeyAEAD, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}

	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10_000
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New("VAULT", "info")
	}

	v := &Vault{
		entries:       make(map[string]*sessionEntry),
		lru:           list.New(),
		aead:          dataKeyAEAD,
		ttl:           cfg.TTL,
		maxSessions:   cfg.MaxSessions,
		log:           cfg.Logger,
		sweepInterval: cfg.SweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	go v.sweepLoop()
	return v, nil
}

// Close stops the TTL sweeper goroutine and waits for it to exit.
func (v *Vault) Close() {
	close(v.stopSweep)
	<-v.sweepDone
}

// BeginOrTouch ensures a session exists (creating an empty mapping if
// not) and resets its sliding-window TTL deadline, per spec.md §4.E's
// "begin_or_touch" operation and §9 OQ3's sliding-window decision. It also
// promotes the session to most-recently-used and, if the table is over
// capacity, evicts the least-recently-used session first.
func (v *Vault) BeginOrTouch(sessionID string) error {
	now := time.Now()

	v.tableMu.Lock()
	entry, ok := v.entries[sessionID]
	if !ok {
		enc, err := seal(v.aead, mustMarshal(newMapping()))
		if err != nil {
			v.tableMu.Unlock()
			return fmt.Errorf("vault: begin_or_touch: %w", err)
		}
		entry = &sessionEntry{sessionID: sessionID, encrypted: enc}
		entry.lruElement = v.lru.PushBack(entry)
		v.entries[sessionID] = entry
		v.evictOverflowLocked()
	} else {
		v.lru.MoveToBack(entry.lruElement)
	}
	entry.expiresAt = now.Add(v.ttl)
	v.tableMu.Unlock()
	return nil
}

// evictOverflowLocked evicts least-recently-used sessions until the table
// is within maxSessions. Callers must hold tableMu for writing.
func (v *Vault) evictOverflowLocked() {
	for len(v.entries) > v.maxSessions {
		front := v.lru.Front()
		if front == nil {
			return
		}
		evicted := front.Value.(*sessionEntry)
		v.lru.Remove(front)
		delete(v.entries, evicted.sessionID)
		v.log.Warnf("session_evict", "session %s evicted: vault over capacity", evicted.sessionID)
	}
}

// lookupEntry finds a live (non-expired) session entry, promoting it to
// most-recently-used and sliding its TTL deadline forward. Returns
// ErrSessionNotFound or ErrTTLExpired on miss.
func (v *Vault) lookupEntry(sessionID string) (*sessionEntry, error) {
	v.tableMu.RLock()
	entry, ok := v.entries[sessionID]
	v.tableMu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	entry.mu.Lock()
	now := time.Now()
	expired := now.After(entry.expiresAt)
	if !expired {
		entry.expiresAt = now.Add(v.ttl)
	}
	entry.mu.Unlock()
	if expired {
		return nil, ErrTTLExpired
	}

	v.tableMu.Lock()
	if e, ok := v.entries[sessionID]; ok {
		v.lru.MoveToBack(e.lruElement)
	}
	v.tableMu.Unlock()
	return entry, nil
}

// Record stores a new (token -> surface) forward mapping and a
// (entityType, normalizedSurface) -> token reverse mapping inside a
// session, per spec.md §4.E's "record" operation. The session must already
// exist (via BeginOrTouch).
func (v *Vault) Record(sessionID, entityType, normalizedSurface, rawSurface, token string) error {
	entry, err := v.lookupEntry(sessionID)
	if err != nil {
		return fmt.Errorf("vault: record: %w", err)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	m, err := v.decryptLocked(entry)
	if err != nil {
		return fmt.Errorf("vault: record: %w", err)
	}
	m.Forward[token] = rawSurface
	m.Reverse[reverseKey(entityType, normalizedSurface)] = token
	return v.encryptLocked(entry, m)
}

// NextOrdinal returns the next 1-based ordinal to mint for entityType
// within a session, and persists the increment so a subsequent call
// within the same session continues the sequence rather than restarting
// it (spec.md §4.D's "[TYPE_A], [TYPE_B], ..." sequencing).
func (v *Vault) NextOrdinal(sessionID, entityType string) (int, error) {
	entry, err := v.lookupEntry(sessionID)
	if err != nil {
		return 0, fmt.Errorf("vault: next_ordinal: %w", err)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	m, err := v.decryptLocked(entry)
	if err != nil {
		return 0, fmt.Errorf("vault: next_ordinal: %w", err)
	}
	m.Ordinals[entityType]++
	ordinal := m.Ordinals[entityType]
	if err := v.encryptLocked(entry, m); err != nil {
		return 0, fmt.Errorf("vault: next_ordinal: %w", err)
	}
	return ordinal, nil
}

// LookupForward resolves a token back to its original raw surface text,
// per spec.md §4.E's "lookup_forward" (used by the Reveal Pipeline). A
// miss (unknown token, unknown session, or expired TTL) returns ok=false
// and no error: an unresolvable token is left untouched, never surfaced
// as a fatal condition.
func (v *Vault) LookupForward(sessionID, token string) (surface string, ok bool, err error) {
	entry, err := v.lookupEntry(sessionID)
	if err != nil {
		return "", false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	m, err := v.decryptLocked(entry)
	if err != nil {
		return "", false, fmt.Errorf("vault: lookup_forward: %w", err)
	}
	surface, ok = m.Forward[token]
	return surface, ok, nil
}

// LookupReverse resolves a previously tokenized (entityType,
// normalizedSurface) pair back to its already-minted token, so the
// Sanitize Pipeline can reuse one token for every repeated occurrence of
// the same PII value within a session (spec.md §4.D "stability").
func (v *Vault) LookupReverse(sessionID, entityType, normalizedSurface string) (token string, ok bool, err error) {
	entry, err := v.lookupEntry(sessionID)
	if err != nil {
		return "", false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	m, err := v.decryptLocked(entry)
	if err != nil {
		return "", false, fmt.Errorf("vault: lookup_reverse: %w", err)
	}
	token, ok = m.Reverse[reverseKey(entityType, normalizedSurface)]
	return token, ok, nil
}

// Purge deletes a session's mapping immediately, per spec.md §4.E's
// "purge" operation. It runs only on request; nothing in the Vault or the
// engine calls it after ErrCryptoFailure. Reports whether a session was
// actually present.
func (v *Vault) Purge(sessionID string) bool {
	v.tableMu.Lock()
	defer v.tableMu.Unlock()
	entry, ok := v.entries[sessionID]
	if !ok {
		return false
	}
	v.lru.Remove(entry.lruElement)
	delete(v.entries, sessionID)
	return true
}

// SessionCount reports the number of live sessions, for /metrics.
func (v *Vault) SessionCount() int {
	v.tableMu.RLock()
	defer v.tableMu.RUnlock()
	return len(v.entries)
}

func (v *Vault) decryptLocked(entry *sessionEntry) (mapping, error) {
	plaintext, err := open(v.aead, entry.encrypted)
	if err != nil {
		return mapping{}, err
	}
	return unmarshal(plaintext), nil
}

func (v *Vault) encryptLocked(entry *sessionEntry, m mapping) error {
	enc, err := seal(v.aead, mustMarshal(m))
	if err != nil {
		return err
	}
	entry.encrypted = enc
	return nil
}

func reverseKey(entityType, normalizedSurface string) string {
	return entityType + "\x00" + normalizedSurface
}

// sweepLoop periodically removes sessions past their TTL deadline, per
// spec.md §4.E's "a periodic sweep reclaims expired sessions so idle
// memory does not grow unbounded."
func (v *Vault) sweepLoop() {
	defer close(v.sweepDone)
	ticker := time.NewTicker(v.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-v.stopSweep:
			return
		case <-ticker.C:
			v.sweepExpired()
		}
	}
}

func (v *Vault) sweepExpired() {
	now := time.Now()
	var expired []string

	v.tableMu.RLock()
	for id, entry := range v.entries {
		entry.mu.Lock()
		if now.After(entry.expiresAt) {
			expired = append(expired, id)
		}
		entry.mu.Unlock()
	}
	v.tableMu.RUnlock()

	if len(expired) == 0 {
		return
	}
	v.tableMu.Lock()
	for _, id := range expired {
		if entry, ok := v.entries[id]; ok {
			v.lru.Remove(entry.lruElement)
			delete(v.entries, id)
		}
	}
	v.tableMu.Unlock()
	v.log.Debugf("sweep", "expired %d session(s)", len(expired))
}
