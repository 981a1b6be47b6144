package history

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lines(t *testing.T, s Store, limit int) []string {
	t.Helper()
	entries, err := s.Entries(limit)
	if err != nil {
		t.Fatalf("Entries(%d): %v", limit, err)
	}
	var out []string
	for _, e := range entries {
		if e.Time.IsZero() {
			t.Errorf("entry %q has no time", e.Line)
		}
		out = append(out, e.Line)
	}
	return out
}

func openStores(t *testing.T, limit int) map[string]func() Store {
	dir := t.TempDir()
	open := func(backend, name string) func() Store {
		return func() Store {
			s, err := Open(backend, filepath.Join(dir, name), limit)
			if err != nil {
				t.Fatalf("Open(%s): %v", backend, err)
			}
			return s
		}
	}
	return map[string]func() Store{
		BackendCBOR:   open(BackendCBOR, "history.cbor"),
		BackendSQLite: open(BackendSQLite, "history.db"),
	}
}

func TestAppendAndLimit(t *testing.T) {
	for backend, open := range openStores(t, 3) {
		t.Run(backend, func(t *testing.T) {
			s := open()
			for _, l := range []string{"a", "b", "c", "d"} {
				if err := s.Append(l); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}
			if diff := cmp.Diff([]string{"b", "c", "d"}, lines(t, s, 0)); diff != "" {
				t.Errorf("all entries (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{"c", "d"}, lines(t, s, 2)); diff != "" {
				t.Errorf("newest two (-want +got):\n%s", diff)
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}

			reopened := open()
			defer reopened.Close()
			if diff := cmp.Diff([]string{"b", "c", "d"}, lines(t, reopened, 0)); diff != "" {
				t.Errorf("after reopen (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "export.rhistory")
	for backend, open := range openStores(t, 0) {
		t.Run(backend, func(t *testing.T) {
			s := open()
			defer s.Close()
			for _, l := range []string{"x <- 1", "print(x)"} {
				if err := s.Append(l); err != nil {
					t.Fatal(err)
				}
			}
			want, err := s.Entries(0)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Save(export); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Append("later"); err != nil {
				t.Fatal(err)
			}
			if err := s.Load(export); err != nil {
				t.Fatalf("Load: %v", err)
			}
			got, err := s.Entries(0)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("loaded entries (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "none.cbor"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("Load of a missing file: %v", err)
	}
	if got := lines(t, s, 0); len(got) != 0 {
		t.Errorf("entries = %v", got)
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := Open("redis", "x", 0); err == nil {
		t.Error("Open accepted an unknown backend")
	}
}
