// Package history stores the console history of a client. Two backends are
// available: a CBOR file and a SQLite database. Both export and import
// history files in CBOR.
package history

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("rjs.history")

// Backend names.
const (
	BackendCBOR   = "cbor"
	BackendSQLite = "sqlite"
)

// Entry is one line of history.
type Entry struct {
	Line string    `cbor:"1,keyasint"`
	Time time.Time `cbor:"2,keyasint"`
}

// Store keeps history entries, oldest first. Appending beyond the limit
// drops the oldest entries.
type Store interface {
	Append(line string) error
	// Entries returns the newest limit entries, all for limit <= 0.
	Entries(limit int) ([]Entry, error)
	// Save writes all entries to a history file.
	Save(path string) error
	// Load replaces the entries with those of a history file.
	Load(path string) error
	Close() error
}

// Open opens the store of backend at path.
func Open(backend, path string, limit int) (Store, error) {
	switch backend {
	case BackendCBOR, "":
		return OpenFile(path, limit)
	case BackendSQLite:
		return OpenSQLite(path, limit)
	}
	return nil, errors.Errorf("unknown history backend %q", backend)
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic("history: failed to create CBOR enc mode: " + err.Error())
	}
	encMode = em
}

// historyFile is the on-disk form of a history file.
type historyFile struct {
	Version int     `cbor:"1,keyasint"`
	Entries []Entry `cbor:"2,keyasint"`
}

const fileVersion = 1

// writeFile replaces path with entries.
func writeFile(path string, entries []Entry) error {
	data, err := encMode.Marshal(&historyFile{Version: fileVersion, Entries: entries})
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "history directory %s", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrapf(err, "write history %s", path)
	}
	return errors.Wrapf(os.Rename(tmp, path), "write history %s", path)
}

// readFile reads a history file. A missing file holds no entries.
func readFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read history %s", path)
	}
	var f historyFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "decode history %s", path)
	}
	if f.Version != fileVersion {
		return nil, errors.Errorf("history %s: unsupported version %d", path, f.Version)
	}
	return f.Entries, nil
}

func newest(entries []Entry, limit int) []Entry {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}
