package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[server]
addr = ":9000"
work_dir = "work"
stale_span = "2m"

[exchange]
answer_retries = 5
idle_poll = "20ms"

[history]
backend = "sqlite"
path = "hist.db"
`)
	c, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":9000" || c.Server.StaleSpan != 2*time.Minute {
		t.Errorf("server = %+v", c.Server)
	}
	if got, want := c.Path(c.Server.WorkDir), filepath.Join(dir, "work"); got != want {
		t.Errorf("work dir = %q, want %q", got, want)
	}
	p := c.Policy()
	if p.AnswerRetries != 5 || p.IdlePoll != 20*time.Millisecond {
		t.Errorf("policy = %+v", p)
	}
	def := Default()
	if c.Exchange.CancelTimeout != def.Exchange.CancelTimeout {
		t.Errorf("cancel timeout = %v, want the default %v", c.Exchange.CancelTimeout, def.Exchange.CancelTimeout)
	}
	if diff := cmp.Diff(History{Backend: "sqlite", Path: "hist.db", Limit: 1000}, c.History); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":  "[server\naddr = 1",
		"backend": "[history]\nbackend = \"redis\"",
		"slot":    "[client]\nslot = 9",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, content)
			if _, err := Load(filepath.Join(dir, FileName)); err == nil {
				t.Error("Load succeeded")
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[log]\nverbosity = 2\n")
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}
	if c.Dir != root {
		t.Errorf("Dir = %q, want %q", c.Dir, root)
	}
}

func TestDefaults(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default().Exchange, c.Exchange); diff != "" {
		t.Errorf("exchange defaults (-want +got):\n%s", diff)
	}
	if c.Server.StaleSpan != 5*time.Minute {
		t.Errorf("stale span = %v", c.Server.StaleSpan)
	}
	opts := c.AdapterOptions()
	if opts.MaxListLength == 0 || opts.HandleTTL == 0 {
		t.Errorf("adapter options = %+v", opts)
	}
}
