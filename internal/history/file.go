package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"knowledge-assistant/internal/models"
)

// FileStore keeps one JSON file per session under a directory. Writes
// replace the whole file via temp-file-and-rename, so a crashed writer
// leaves either the old complete history or the new complete history on
// disk, never a truncated one.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the storage directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &FileStore{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// sessionLock serializes operations per session id. Different sessions
// proceed fully in parallel.
func (s *FileStore) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sanitize(sessionID)+".json")
}

// Load returns the session's turns in order. A missing file means an
// empty history; an unparseable file is treated as empty and logged,
// never fatal.
func (s *FileStore) Load(ctx context.Context, sessionID string) ([]models.Turn, error) {
	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()
	return s.load(sessionID), nil
}

func (s *FileStore) load(sessionID string) []models.Turn {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("session", sessionID).Msg("Reading history failed, treating as empty")
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	var turns []models.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("Corrupted history file, treating as empty")
		return nil
	}
	return turns
}

// Append extends the session's history with the given turns as one
// atomic replace of the session file.
func (s *FileStore) Append(ctx context.Context, sessionID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	all := append(s.load(sessionID), turns...)
	return s.write(sessionID, all)
}

// Clear replaces the stored sequence with the empty sequence.
func (s *FileStore) Clear(ctx context.Context, sessionID string) error {
	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()
	return s.write(sessionID, []models.Turn{})
}

func (s *FileStore) write(sessionID string, turns []models.Turn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp history file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(sessionID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing history file: %w", err)
	}
	return nil
}

// sanitize maps a session id onto a safe file name.
func sanitize(sessionID string) string {
	if sessionID == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range sessionID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
