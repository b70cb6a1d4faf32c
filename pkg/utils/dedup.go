package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
)

// Deduplicator remembers content hashes across a batch run so identical
// files reached through different paths or shares are extracted once.
type Deduplicator struct {
	mu     sync.Mutex
	hashes map[string]string // hash -> first path seen
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		hashes: make(map[string]string),
	}
}

// Seen records hash for path. It returns the earlier path and true when
// the hash was already recorded.
func (d *Deduplicator) Seen(hash, path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if first, ok := d.hashes[hash]; ok {
		return first, true
	}
	d.hashes[hash] = path
	return "", false
}

// Len returns the number of distinct hashes recorded.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.hashes)
}

// HashReader returns the hex SHA-256 of everything r yields. It consumes r.
func HashReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
