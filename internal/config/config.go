// Package config loads the netbin CLI configuration.
//
// The file is named by the --config flag or, failing that, the
// NETBIN_CONFIG environment variable. There is no discovery: without
// either, the defaults apply. TOML (.toml) and YAML (.yaml, .yml) are
// both accepted.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dadrian/netbin/internal/logging"
)

const EnvConfig = "NETBIN_CONFIG"

// Format selects how decoded values are written.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

var ErrUnknownFormat = errors.New("config: unknown format")

// Config holds the settings shared by the CLI subcommands. Flags given
// on the command line take precedence over these.
type Config struct {
	// Schema is the path of a shape document. Relative paths are taken
	// from the directory holding the config file.
	Schema string `toml:"schema" yaml:"schema"`

	// Type names the shape to use; empty means the schema's root.
	Type string `toml:"type" yaml:"type"`

	Format   Format `toml:"format" yaml:"format"`
	Hex      bool   `toml:"hex" yaml:"hex"`
	LogLevel string `toml:"log_level" yaml:"log_level"`

	// Types are extra declarations, name to shape expression, added to
	// the schema.
	Types map[string]string `toml:"types" yaml:"types"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{Format: FormatJSON}
}

// Path picks the config file: the flag value if set, else $NETBIN_CONFIG.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfig)
}

// Load reads the file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("load config %s: unknown key %s", path, undecoded[0])
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("load config %s: unsupported extension %q", path, ext)
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(path), cfg.Schema)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.Format, _ = ParseFormat(string(cfg.Format))
	return cfg, nil
}

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	if _, err := ParseFormat(string(c.Format)); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
		}
	}
	for name, expr := range c.Types {
		if strings.TrimSpace(expr) == "" {
			return fmt.Errorf("config: type %s has an empty expression", name)
		}
	}
	return nil
}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatCBOR:
		return f, nil
	}
	return "", fmt.Errorf("%w %q (want json, yaml or cbor)", ErrUnknownFormat, s)
}
