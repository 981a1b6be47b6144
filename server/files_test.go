package server

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestFileStore_Resolve(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"a.txt", filepath.Join(root, "a.txt"), true},
		{"dir/b.txt", filepath.Join(root, "dir", "b.txt"), true},
		{"dir/../c.txt", filepath.Join(root, "c.txt"), true},
		{"", "", false},
		{".", "", false},
		{"..", "", false},
		{"../x", "", false},
		{"dir/../../x", "", false},
		{"/abs", "", false},
	}
	for _, tt := range tests {
		got, err := store.resolve(tt.name)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("resolve(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrOutsideWorkDir) {
			t.Errorf("resolve(%q) error = %v, want ErrOutsideWorkDir", tt.name, err)
		}
	}
}
