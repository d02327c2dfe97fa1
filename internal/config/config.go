package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const EnvPrefix = "WEBCHAT_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Store      StoreConfig      `koanf:"store"`
	Vendor     VendorConfig     `koanf:"vendor"`
	OpenAI     OpenAIConfig     `koanf:"openai"`
	Transcript TranscriptConfig `koanf:"transcript"`
	Chat       ChatConfig       `koanf:"chat"`
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// AllowedOrigins is a comma separated list, "*" allows any.
	AllowedOrigins string `koanf:"allowed_origins"`
}

// Origins splits AllowedOrigins.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type StoreConfig struct {
	Driver string `koanf:"driver"` // memory | postgres | sqlite
	DSN    string `koanf:"dsn"`
}

type VendorConfig struct {
	Backend     string        `koanf:"backend"` // nuance | assistant
	URL         string        `koanf:"url"`
	HistoryURL  string        `koanf:"history_url"`
	Token       string        `koanf:"token"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

type OpenAIConfig struct {
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type TranscriptConfig struct {
	RevealDelay time.Duration `koanf:"reveal_delay"`
}

type ChatConfig struct {
	TypingThreshold time.Duration `koanf:"typing_threshold"`
	SoundOn         bool          `koanf:"sound_on"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

const (
	BackendNuance    = "nuance"
	BackendAssistant = "assistant"
)

var defaults = map[string]any{
	"server.port":             8080,
	"server.allowed_origins":  "*",
	"store.driver":            "memory",
	"vendor.backend":          BackendNuance,
	"vendor.dial_timeout":     "10s",
	"openai.timeout":          "30s",
	"transcript.reveal_delay": "250ms",
	"chat.typing_threshold":   "3s",
	"chat.sound_on":           true,
	"log.level":               "info",
	"telemetry.service_name":  "webchat-skin",
}

// Load reads, in increasing priority: defaults, the YAML file at path (if
// path is not empty), .env, and WEBCHAT_* environment variables. A double
// underscore separates levels: WEBCHAT_STORE__DSN sets store.dsn.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, errors.Wrapf(err, "default %s", key)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(err, "config file")
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load env")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch c.Store.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			return errors.Errorf("store.dsn is required for %s", c.Store.Driver)
		}
	default:
		return errors.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Vendor.Backend {
	case BackendNuance:
		if c.Vendor.URL == "" {
			return errors.New("vendor.url is required for the nuance backend")
		}
	case BackendAssistant:
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key is required for the assistant backend")
		}
	default:
		return errors.Errorf("unknown vendor.backend %q", c.Vendor.Backend)
	}
	return nil
}
