package server

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/chazu/rjs/item"
)

// ErrOutsideWorkDir is returned for paths that leave the work directory.
var ErrOutsideWorkDir = errors.New("path is outside the work directory")

// FileStore serves file transfers relative to a work directory.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "work directory %q", dir)
	}
	return &FileStore{root: root}, nil
}

// Root returns the absolute work directory.
func (f *FileStore) Root() string { return f.root }

// resolve maps a client path to a file below the root.
func (f *FileStore) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.ContainsRune(name, 0) {
		return "", errors.Wrapf(ErrOutsideWorkDir, "%q", name)
	}
	p := filepath.Join(f.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(f.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrOutsideWorkDir, "%q", name)
	}
	return p, nil
}

// Transfer runs an upload or a download. A download returns the file
// contents in a file envelope; everything else returns a status envelope.
func (f *FileStore) Transfer(t *item.FileTransfer) *item.Envelope {
	p, err := f.resolve(t.Path)
	if err != nil {
		return item.StatusEnvelope(item.NewStatus(item.SeverityError, item.CodeClientError, err.Error()))
	}
	switch t.Direction {
	case item.Upload:
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fileError("upload", t.Path, err)
		}
		if err := os.WriteFile(p, t.Data, 0o644); err != nil {
			return fileError("upload", t.Path, err)
		}
		log.Debugf("uploaded %d bytes to %s", len(t.Data), p)
		return item.StatusEnvelope(item.OK())
	case item.Download:
		data, err := os.ReadFile(p)
		if err != nil {
			return fileError("download", t.Path, err)
		}
		return item.FileEnvelope(&item.FileTransfer{Direction: item.Download, Path: t.Path, Data: data})
	}
	return item.StatusEnvelope(item.NewStatus(item.SeverityError, item.CodeClientError, "unknown transfer direction"))
}

func fileError(op, name string, err error) *item.Envelope {
	log.Warningf("%s %q: %s", op, name, err.Error())
	msg := op + " failed"
	if os.IsNotExist(err) {
		msg = "file not found"
	}
	return item.StatusEnvelope(item.NewStatus(item.SeverityError, item.CodeNone, msg+": "+name))
}
