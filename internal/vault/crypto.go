package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrCryptoFailure wraps an authenticated-decryption failure: a corrupted
// or tampered ciphertext, or a key mismatch. The failing operation returns
// it as an error; the session itself is left in the Vault (no caller purges
// it on this error).
var ErrCryptoFailure = errors.New("vault: crypto failure")

const hkdfInfo = "aegis-vault-data-encryption-key-v1"

// deriveKey derives a 32-byte AES-256 key from the operator-supplied root
// key material using HKDF-SHA256 (golang.org/x/crypto/hkdf), with salt
// randomly generated once per process at Vault construction time. This is
// the standard Go idiom for turning an arbitrary-length operator secret
// into a fixed-length symmetric key, grounded on zoobzio-cereal's AES-GCM
// construction (see DESIGN.md) extended with proper key derivation rather
// than using the root key bytes directly.
func deriveKey(rootKey, salt []byte) ([32]byte, error) {
	var key [32]byte
	r := hkdf.New(sha256.New, rootKey, salt, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("vault: derive key: %w", err)
	}
	return key, nil
}

// newAEAD constructs the AES-256-GCM authenticated cipher used for all
// Vault payload encryption, per spec.md §4.E's "authenticated cipher
// (AES-256-GCM or equivalent)" requirement.
func newAEAD(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// seal encrypts plaintext with a fresh random nonce per write (spec.md
// §4.E), prepending the nonce to the returned ciphertext.
func seal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a seal()-produced ciphertext. Any authentication failure
// is reported as ErrCryptoFailure, never surfaced as a plaintext partial
// result.
func open(aead cipher.AEAD, ciphertext []byte) ([]byte, error) {
	n := aead.NonceSize()
	if len(ciphertext) < n {
		return nil, ErrCryptoFailure
	}
	nonce, ct := ciphertext[:n], ciphertext[n:]
	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return plaintext, nil
}
