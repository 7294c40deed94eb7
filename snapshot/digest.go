package snapshot

import (
	"crypto/sha256"
	"fmt"

	"github.com/chazu/valence/object"
)

// ---------------------------------------------------------------------------
// Content digests
// ---------------------------------------------------------------------------

// DigestRecord computes the SHA-256 of a class record's canonical CBOR
// encoding. Records with identical structure always digest identically.
func DigestRecord(rec *ClassRecord) ([32]byte, error) {
	data, err := cborEncMode.Marshal(rec)
	if err != nil {
		return [32]byte{}, fmt.Errorf("snapshot: digest class %s: %w", rec.Name, err)
	}
	return sha256.Sum256(data), nil
}

// DigestClass computes the content digest of a live class.
func DigestClass(c *object.Class) ([32]byte, error) {
	rec := recordFor(c)
	return DigestRecord(&rec)
}

// DigestSnapshot computes the SHA-256 over a whole snapshot's canonical
// CBOR encoding.
func DigestSnapshot(s *Snapshot) ([32]byte, error) {
	data, err := cborEncMode.Marshal(s)
	if err != nil {
		return [32]byte{}, fmt.Errorf("snapshot: digest snapshot: %w", err)
	}
	return sha256.Sum256(data), nil
}
