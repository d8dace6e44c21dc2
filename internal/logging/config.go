// Package logging configures zerolog for the netbin tools.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dadrian/netbin"
)

const (
	EnvLogLevel     = "NETBIN_LOG_LEVEL"
	EnvLogTimestamp = "NETBIN_LOG_TIMESTAMP"
	EnvLogNoColor   = "NETBIN_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

// Defaults returns the configuration for profile before any overrides.
func Defaults(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Timestamp: true}
	}
}

// ApplyEnv overrides cfg from the NETBIN_LOG_* environment variables.
// Unset or unparsable variables leave the field alone.
func ApplyEnv(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// New builds a console logger writing to w.
func New(cfg Config, w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		output.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(output).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// Install makes l the global zerolog logger and the codec's default.
func Install(l zerolog.Logger) {
	if l.GetLevel() < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(l.GetLevel())
	}
	log.Logger = l
	netbin.SetLogger(l)
}

// Test returns a logger that writes through t.Log, so output appears
// only for failing or verbose tests. NETBIN_LOG_LEVEL overrides the
// test profile's level.
func Test(t zerolog.TestingLog) zerolog.Logger {
	cfg := Defaults(ProfileTest)
	ApplyEnv(&cfg)
	return zerolog.New(zerolog.NewTestWriter(t)).Level(cfg.Level)
}

// ParseLevel accepts the usual level names plus a few synonyms.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
