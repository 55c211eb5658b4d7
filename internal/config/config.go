// Package config loads service and CLI settings from an optional YAML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tinoosan/books/internal/errs"
	"github.com/tinoosan/books/internal/service/coa"
)

// Config is the top-level books.yaml configuration.
type Config struct {
	HTTP        HTTPConfig   `yaml:"http"`
	DatabaseURL string       `yaml:"database_url,omitempty"`
	Log         LogConfig    `yaml:"log"`
	Import      ImportConfig `yaml:"import"`
	Auth        AuthConfig   `yaml:"auth,omitempty"`
	// DevSeed bootstraps a demo owner and ledger at startup.
	DevSeed bool `yaml:"dev_seed,omitempty"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// ImportConfig controls chart-of-accounts imports.
type ImportConfig struct {
	Duplicates coa.DuplicatePolicy `yaml:"duplicates"`
	// StrictRoles rejects rows whose role does not belong to their kind.
	StrictRoles bool `yaml:"strict_roles,omitempty"`
	// Chart is a chart file path or bundled chart name.
	Chart string `yaml:"chart,omitempty"`
	// WatchChart re-imports Chart into LedgerID whenever the file changes.
	WatchChart bool   `yaml:"watch_chart,omitempty"`
	LedgerID   string `yaml:"ledger_id,omitempty"`
}

// AuthConfig enables HS256 bearer tokens when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret,omitempty"`
	Issuer    string `yaml:"issuer,omitempty"`
	Audience  string `yaml:"audience,omitempty"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log:    LogConfig{Level: "info", Format: "json"},
		Import: ImportConfig{Duplicates: coa.DuplicateReject},
	}
}

// Load reads path when it is non-empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		default:
			return fmt.Errorf("%s=%q: %w", key, v, errs.ErrInvalid)
		}
		return nil
	}

	str("HTTP_ADDR", &c.HTTP.Addr)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	var dup string
	str("IMPORT_DUPLICATES", &dup)
	if dup != "" {
		c.Import.Duplicates = coa.DuplicatePolicy(dup)
	}
	str("COA_FILE", &c.Import.Chart)
	str("COA_LEDGER_ID", &c.Import.LedgerID)
	str("JWT_HS256_SECRET", &c.Auth.JWTSecret)
	str("JWT_ISSUER", &c.Auth.Issuer)
	str("JWT_AUDIENCE", &c.Auth.Audience)
	return errors.Join(
		boolean("COA_WATCH", &c.Import.WatchChart),
		boolean("IMPORT_STRICT_ROLES", &c.Import.StrictRoles),
		boolean("DEV_SEED", &c.DevSeed),
	)
}

// Validate checks values that would otherwise fail late at startup and
// normalizes the duplicate policy.
func (c *Config) Validate() error {
	var problems []error
	if c.HTTP.Addr == "" {
		problems = append(problems, errors.New("http.addr is required"))
	}
	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 {
		problems = append(problems, errors.New("http timeouts must not be negative"))
	}
	if p, err := coa.ParseDuplicatePolicy(string(c.Import.Duplicates)); err != nil {
		problems = append(problems, err)
	} else {
		c.Import.Duplicates = p
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		problems = append(problems, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	if c.Import.WatchChart {
		if c.Import.Chart == "" {
			problems = append(problems, errors.New("import.watch_chart needs import.chart"))
		}
		if _, err := c.ImportLedgerID(); err != nil {
			problems = append(problems, err)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", errs.ErrInvalid, errors.Join(problems...))
}

// Options returns the importer options this configuration selects.
func (c ImportConfig) Options() coa.Options {
	return coa.Options{Duplicates: c.Duplicates, StrictRoles: c.StrictRoles}
}

// ImportLedgerID parses Import.LedgerID.
func (c *Config) ImportLedgerID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Import.LedgerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("import.ledger_id %q: %w", c.Import.LedgerID, errs.ErrInvalid)
	}
	return id, nil
}

// ParseLevel maps a level name to a slog level; unknown names mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a JSON logger, or a text logger when Format is "text".
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
