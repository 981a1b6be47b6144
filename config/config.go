// Package config handles rjs.toml configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/chazu/rjs/adapter"
	"github.com/chazu/rjs/exchange"
)

// FileName is the name of the configuration file.
const FileName = "rjs.toml"

// Config represents an rjs.toml configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Exchange Exchange `toml:"exchange"`
	Data     Data     `toml:"data"`
	Log      Log      `toml:"log"`
	History  History  `toml:"history"`
	Client   Client   `toml:"client"`

	// Dir is the directory containing the rjs.toml file (set at load time).
	Dir string `toml:"-"`
}

// Server configures the server binary.
type Server struct {
	Addr          string        `toml:"addr"`
	WorkDir       string        `toml:"work_dir"`
	Profile       string        `toml:"profile"`
	StaleSpan     time.Duration `toml:"stale_span"`
	SweepInterval time.Duration `toml:"sweep_interval"`
	HandleTTL     time.Duration `toml:"handle_ttl"`
}

// Exchange tunes the exchange between engine and clients.
type Exchange struct {
	AnswerRetries int           `toml:"answer_retries"`
	IdlePoll      time.Duration `toml:"idle_poll"`
	CancelTimeout time.Duration `toml:"cancel_timeout"`
	DrainTimeout  time.Duration `toml:"drain_timeout"`
	StdoutBuffer  int           `toml:"stdout_buffer"`
}

// Data bounds value construction.
type Data struct {
	MaxListLength int `toml:"max_list_length"`
	MaxEnvLength  int `toml:"max_env_length"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// History configures the console history of the client.
type History struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	Limit   int    `toml:"limit"`
}

// Client configures the console client.
type Client struct {
	URL  string `toml:"url"`
	Slot int    `toml:"slot"`
}

// Default returns the configuration used without an rjs.toml.
func Default() *Config {
	policy := exchange.DefaultPolicy()
	opts := adapter.DefaultOptions()
	return &Config{
		Server: Server{
			Addr:          "localhost:8765",
			WorkDir:       ".",
			StaleSpan:     5 * time.Minute,
			SweepInterval: 30 * time.Second,
			HandleTTL:     opts.HandleTTL,
		},
		Exchange: Exchange{
			AnswerRetries: policy.AnswerRetries,
			IdlePoll:      policy.IdlePoll,
			CancelTimeout: policy.CancelTimeout,
			DrainTimeout:  policy.DrainTimeout,
			StdoutBuffer:  policy.StdoutBufferSize,
		},
		Data: Data{
			MaxListLength: opts.MaxListLength,
			MaxEnvLength:  opts.MaxEnvLength,
		},
		History: History{
			Backend: "cbor",
			Path:    ".rjs_history",
			Limit:   1000,
		},
		Client: Client{
			URL: "http://localhost:8765",
		},
	}
}

// Load parses the configuration file at path. Unset values keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve path %s", path)
	}
	return c, c.validate()
}

// FindAndLoad walks up from startDir to find an rjs.toml file, then loads
// and returns it. Without a file it returns the defaults.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			c := Default()
			c.Dir, err = filepath.Abs(startDir)
			return c, err
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	switch c.History.Backend {
	case "cbor", "sqlite":
	default:
		return errors.Errorf("history backend %q: want cbor or sqlite", c.History.Backend)
	}
	if c.Client.Slot < 0 || c.Client.Slot >= exchange.NumSlots {
		return errors.Errorf("client slot %d out of range", c.Client.Slot)
	}
	return nil
}

// Path resolves p against the configuration directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Policy returns the exchange policy.
func (c *Config) Policy() exchange.Policy {
	return exchange.Policy{
		AnswerRetries:    c.Exchange.AnswerRetries,
		IdlePoll:         c.Exchange.IdlePoll,
		CancelTimeout:    c.Exchange.CancelTimeout,
		DrainTimeout:     c.Exchange.DrainTimeout,
		StdoutBufferSize: c.Exchange.StdoutBuffer,
	}
}

// AdapterOptions returns the options of the engine context.
func (c *Config) AdapterOptions() adapter.Options {
	return adapter.Options{
		MaxListLength: c.Data.MaxListLength,
		MaxEnvLength:  c.Data.MaxEnvLength,
		HandleTTL:     c.Server.HandleTTL,
		SweepInterval: c.Server.SweepInterval,
	}
}
