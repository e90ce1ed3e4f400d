// Package dedup keeps the fingerprint ledger that guards the knowledge
// base against re-ingesting content it has already seen.
package dedup

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Fingerprint returns the hash of the normalized UTF-8 text. Normalization
// trims surrounding whitespace so that trailing-newline variants of the
// same document share a fingerprint.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Ledger is an append-only set of content fingerprints backed by a flat
// text file, one hash per line. The in-memory set mirrors the file and is
// loaded once at construction.
type Ledger struct {
	mu   sync.Mutex
	path string
	seen map[string]struct{}
}

// NewLedger opens the ledger file, creating it (and its directory) if it
// does not exist yet, and loads all recorded fingerprints.
func NewLedger(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			seen[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return &Ledger{path: path, seen: seen}, nil
}

// IsDuplicate reports whether the text's fingerprint is already recorded.
func (l *Ledger) IsDuplicate(text string) bool {
	fp := Fingerprint(text)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[fp]
	return ok
}

// Record appends the text's fingerprint to the ledger. Recording an
// already-seen fingerprint is a no-op, so the ledger never carries
// redundant lines. Existing entries are never rewritten or removed.
func (l *Ledger) Record(text string) error {
	fp := Fingerprint(text)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[fp]; ok {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger for append: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(fp + "\n"); err != nil {
		return fmt.Errorf("appending fingerprint: %w", err)
	}
	l.seen[fp] = struct{}{}
	log.Debug().Str("fingerprint", fp).Msg("Recorded content fingerprint")
	return nil
}

// Size returns the number of distinct fingerprints recorded.
func (l *Ledger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
