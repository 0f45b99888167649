package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CRYPTOVAULT_"

// Config is the resolved configuration of a vault.
type Config struct {
	Keystore KeystoreConfig `yaml:"keystore" toml:"keystore" json:"keystore"`
	Store    StoreConfig    `yaml:"store" toml:"store" json:"store"`
	Keys     KeysConfig     `yaml:"keys" toml:"keys" json:"keys"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging" json:"logging"`
}

// KeystoreConfig selects where the vault key lives.
type KeystoreConfig struct {
	// Backend is "file", "memory" or an OS keyring backend name.
	Backend string `yaml:"backend" toml:"backend" json:"backend"`
	// Service is the keyring service name.
	Service string `yaml:"service" toml:"service" json:"service"`
	// Alias names the vault key within the keyring.
	Alias string `yaml:"alias" toml:"alias" json:"alias"`
	// FileDir is the directory of the file backend.
	FileDir string `yaml:"file_dir" toml:"file_dir" json:"file_dir"`
	// Password unlocks the file backend. Prefer CRYPTOVAULT_KEYSTORE_PASSWORD.
	Password string `yaml:"password" toml:"password" json:"password"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	// Backend is "sqlite", "file" or "memory".
	Backend  string `yaml:"backend" toml:"backend" json:"backend"`
	Path     string `yaml:"path" toml:"path" json:"path"`
	Document string `yaml:"document" toml:"document" json:"document"`
	// PollInterval is the cross-process change detection period for sqlite.
	// Zero disables it.
	PollInterval    time.Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
	MaxRetries      uint64        `yaml:"max_retries" toml:"max_retries" json:"max_retries"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed" toml:"retry_max_elapsed" json:"retry_max_elapsed"`
}

// KeysConfig controls how vault keys are interpreted.
type KeysConfig struct {
	// Normalize is "none" or "nfc".
	Normalize string `yaml:"normalize" toml:"normalize" json:"normalize"`
}

// LoggingConfig controls the CLI's log output.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
}

// DefaultPollInterval is how often a sqlite store checks for commits made
// by other processes, such as a second CLI invocation.
const DefaultPollInterval = 500 * time.Millisecond

// Default returns the built-in configuration: a password-protected key file
// and a SQLite document under the user's config directory.
func Default() Config {
	dir := DataDir()
	return Config{
		Keystore: KeystoreConfig{
			Backend: "file",
			Service: "cryptovault",
			Alias:   "CryptoVault_KeyAlias_v1",
			FileDir: filepath.Join(dir, "keys"),
		},
		Store: StoreConfig{
			Backend:         "sqlite",
			Path:            filepath.Join(dir, "vault.db"),
			Document:        "default",
			PollInterval:    DefaultPollInterval,
			MaxRetries:      10,
			RetryMaxElapsed: 5 * time.Second,
		},
		Keys:    KeysConfig{Normalize: "none"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// DataDir returns the default directory for vault data.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cryptovault")
	}
	return ".cryptovault"
}

// Load resolves the configuration: defaults, then the file at path (if
// non-empty), then CRYPTOVAULT_* environment overrides. The result is
// validated before it is returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Variables that are already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), c)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("parse config %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", ext)
	}
	return nil
}

// applyEnv overlays environment variables read through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"KEYSTORE_BACKEND":  &c.Keystore.Backend,
		"KEYSTORE_SERVICE":  &c.Keystore.Service,
		"KEYSTORE_ALIAS":    &c.Keystore.Alias,
		"KEYSTORE_FILE_DIR": &c.Keystore.FileDir,
		"KEYSTORE_PASSWORD": &c.Keystore.Password,
		"STORE_BACKEND":     &c.Store.Backend,
		"STORE_PATH":        &c.Store.Path,
		"STORE_DOCUMENT":    &c.Store.Document,
		"KEYS_NORMALIZE":    &c.Keys.Normalize,
		"LOG_LEVEL":         &c.Logging.Level,
		"LOG_FORMAT":        &c.Logging.Format,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"STORE_POLL_INTERVAL":     &c.Store.PollInterval,
		"STORE_RETRY_MAX_ELAPSED": &c.Store.RetryMaxElapsed,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "STORE_MAX_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSTORE_MAX_RETRIES: %w", EnvPrefix, err)
		}
		c.Store.MaxRetries = n
	}
	return nil
}

// Validate checks c against the configuration schema and the cross-field
// rules the schema cannot express.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Keystore.Backend == "file" {
		if c.Keystore.FileDir == "" {
			return errors.New("invalid config: keystore.file_dir is required for the file backend")
		}
		if c.Keystore.Password == "" {
			return fmt.Errorf("invalid config: keystore.password (or %sKEYSTORE_PASSWORD) is required for the file backend", EnvPrefix)
		}
	}
	if c.Store.Backend != "memory" && c.Store.Path == "" {
		return fmt.Errorf("invalid config: store.path is required for the %s backend", c.Store.Backend)
	}
	return nil
}

// SlogLevel maps Logging.Level to a slog level. Unknown levels are Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
