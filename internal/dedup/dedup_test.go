package dedup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstCheckCreatesLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.txt")

	ledger, err := NewLedger(path)
	require.NoError(t, err)
	assert.False(t, ledger.IsDuplicate("never seen"))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRecordThenDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.txt")
	ledger, err := NewLedger(path)
	require.NoError(t, err)

	text := "产品保修期为一年。"
	assert.False(t, ledger.IsDuplicate(text))
	require.NoError(t, ledger.Record(text))
	assert.True(t, ledger.IsDuplicate(text))
	assert.False(t, ledger.IsDuplicate("different content"))
}

func TestPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.txt")

	first, err := NewLedger(path)
	require.NoError(t, err)
	require.NoError(t, first.Record("persisted content"))

	second, err := NewLedger(path)
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate("persisted content"))
	assert.Equal(t, 1, second.Size())
}

func TestRecordIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.txt")
	ledger, err := NewLedger(path)
	require.NoError(t, err)

	require.NoError(t, ledger.Record("same content"))
	require.NoError(t, ledger.Record("same content"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Fields(string(data))
	assert.Len(t, lines, 1)
}

func TestNormalizationIgnoresSurroundingWhitespace(t *testing.T) {
	assert.Equal(t, Fingerprint("hello"), Fingerprint("  hello\n"))
	assert.NotEqual(t, Fingerprint("hello"), Fingerprint("hell o"))
}
