package history

import (
	"sync"
	"time"
)

// FileStore keeps the history in memory and rewrites its CBOR file on every
// change.
type FileStore struct {
	mu      sync.Mutex
	path    string
	limit   int
	entries []Entry
}

// OpenFile opens the history file at path, creating it on the first append.
func OpenFile(path string, limit int) (*FileStore, error) {
	entries, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, limit: limit, entries: newest(entries, limit)}, nil
}

func (s *FileStore) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = newest(append(s.entries, Entry{Line: line, Time: time.Now()}), s.limit)
	return writeFile(s.path, s.entries)
}

func (s *FileStore) Entries(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), newest(s.entries, limit)...), nil
}

func (s *FileStore) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFile(path, s.entries)
}

func (s *FileStore) Load(path string) error {
	entries, err := readFile(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = newest(entries, s.limit)
	log.Debugf("loaded %d history entries from %s", len(s.entries), path)
	return writeFile(s.path, s.entries)
}

func (s *FileStore) Close() error { return nil }
