// Package config loads tarottimer settings from built-in defaults, an
// optional YAML file, TAROT_ environment variables and command-line flags, in
// that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/tarottimer/internal/decksource"
	"github.com/conorfennell/tarottimer/internal/schedule"
)

// EnvPrefix marks environment variables read as configuration. Nested keys
// are separated by a double underscore: TAROT_RECONCILE__AUTO_DRAW.
const EnvPrefix = "TAROT_"

// DefaultFile is read when no explicit config path is given and it exists.
const DefaultFile = "tarottimer.yaml"

// Config is the resolved application configuration.
type Config struct {
	DBPath   string `koanf:"db_path" validate:"required"`
	Timezone string `koanf:"timezone" validate:"omitempty,timezone"`
	Locale   string `koanf:"locale" validate:"required,bcp47_language_tag"`

	Deck struct {
		Source   string `koanf:"source" validate:"required"`
		ReposDir string `koanf:"repos_dir" validate:"required"`
	} `koanf:"deck"`

	Reconcile struct {
		AutoDraw     bool          `koanf:"auto_draw"`
		TickInterval time.Duration `koanf:"tick_interval" validate:"gte=1s"`
		OpTimeout    time.Duration `koanf:"op_timeout" validate:"gt=0"`
	} `koanf:"reconcile"`

	Lifecycle struct {
		ResumeDebounce time.Duration `koanf:"resume_debounce" validate:"gte=0"`
		HandlerTimeout time.Duration `koanf:"handler_timeout" validate:"gt=0"`
	} `koanf:"lifecycle"`

	Reminder struct {
		Hour       int                 `koanf:"hour" validate:"gte=0,lte=23"`
		QuietHours schedule.QuietHours `koanf:"quiet_hours"`
	} `koanf:"reminder"`

	HTTP struct {
		Addr string `koanf:"addr" validate:"required,hostname_port"`
	} `koanf:"http"`

	Log struct {
		Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
		Format string `koanf:"format" validate:"oneof=console text json"`
	} `koanf:"log"`
}

func defaults() map[string]any {
	return map[string]any{
		"db_path":                      "tarottimer.db",
		"timezone":                     "",
		"locale":                       "en",
		"deck.source":                  decksource.Builtin,
		"deck.repos_dir":               "decks",
		"reconcile.auto_draw":          false,
		"reconcile.tick_interval":      30 * time.Second,
		"reconcile.op_timeout":         2 * time.Second,
		"lifecycle.resume_debounce":    time.Second,
		"lifecycle.handler_timeout":    5 * time.Second,
		"reminder.hour":                schedule.DefaultReminderHour,
		"reminder.quiet_hours.enabled": false,
		"reminder.quiet_hours.start":   22,
		"reminder.quiet_hours.end":     8,
		"http.addr":                    "127.0.0.1:8080",
		"log.level":                    "info",
		"log.format":                   "console",
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"db":         "db_path",
	"timezone":   "timezone",
	"locale":     "locale",
	"deck":       "deck.source",
	"repos-dir":  "deck.repos_dir",
	"auto-draw":  "reconcile.auto_draw",
	"tick":       "reconcile.tick_interval",
	"addr":       "http.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Configuration file path")
	fs.String("db", "", "Path to the SQLite database file")
	fs.String("timezone", "", "IANA timezone for the local calendar (default: system zone)")
	fs.String("locale", "", "Preferred card name locale")
	fs.String("deck", "", "Deck source: builtin:rider-waite, a local path or a git URL")
	fs.String("repos-dir", "", "Directory git deck sources are cloned into")
	fs.Bool("auto-draw", false, "Draw the new day's cards automatically at rollover")
	fs.Duration("tick", 0, "Interval between date checks while active")
	fs.String("addr", "", "HTTP listen address")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("log-format", "", "Log format: console or json")
}

// Load resolves the configuration. flags may be nil. An explicit config path
// that does not exist is an error; the default file is optional.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	path, explicit := configPath(flags)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves Timezone, falling back to the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func configPath(flags *pflag.FlagSet) (string, bool) {
	if flags != nil {
		if p, err := flags.GetString("config"); err == nil && p != "" {
			return p, true
		}
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, true
	}
	return DefaultFile, false
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key == "config" {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}
