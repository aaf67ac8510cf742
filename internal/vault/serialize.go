package vault

import (
	"crypto/rand"

	"github.com/vmihailenco/msgpack/v5"
)

// mustMarshal encodes a mapping with msgpack before encryption. msgpack
// (rather than JSON) is used for this internal, never-externally-visible
// payload: compact binary encoding keeps the encrypted blob small across
// many (token -> surface) pairs, and it is the same serialization family
// zoobzio-cereal depends on (see DESIGN.md). A marshal error here would
// mean the mapping type itself is unencodable, which is a programming
// error, not a runtime condition callers should handle — so this panics
// rather than threading an error through every call site.
func mustMarshal(m mapping) []byte {
	b, err := msgpack.Marshal(m)
	if err != nil {
		panic("vault: marshal mapping: " + err.Error())
	}
	return b
}

// unmarshal decodes a msgpack-encoded mapping. The caller has already
// authenticated the bytes via AEAD before this is reached, so a decode
// failure here would indicate data corruption that slipped past
// authentication — treated the same way, as a programming-level panic.
func unmarshal(b []byte) mapping {
	var m mapping
	if err := msgpack.Unmarshal(b, &m); err != nil {
		panic("vault: unmarshal mapping: " + err.Error())
	}
	return m
}

func readRandom(b []byte) (int, error) {
	return rand.Read(b)
}
