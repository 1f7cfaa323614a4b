// Package config loads the settings of the stdio server binaries.
//
// Values are layered: built-in defaults, then an optional TOML file, then the
// process environment (after any .env file has been merged into it).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// ConfigFileEnv names the variable consulted when no config path is given.
const ConfigFileEnv = "MCP_CONFIG_FILE"

// Config is the server configuration. Every field can be set from TOML or
// from the environment variable named in its env tag.
type Config struct {
	// Name and Version are reported as serverInfo during initialize.
	Name    string `toml:"name" env:"MCP_SERVER_NAME"`
	Version string `toml:"version" env:"MCP_SERVER_VERSION"`
	// Instructions is the optional usage hint sent to clients.
	Instructions string `toml:"instructions" env:"MCP_SERVER_INSTRUCTIONS"`
	// Description is reported by the server://info resource.
	Description string `toml:"description" env:"MCP_SERVER_DESCRIPTION"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `toml:"log_level" env:"MCP_LOG_LEVEL"`
	// LogFormat is text or json. Logs always go to stderr.
	LogFormat string `toml:"log_format" env:"MCP_LOG_FORMAT"`

	// ResourceDir, when set, exposes the regular files of that directory as
	// file:// resources.
	ResourceDir string `toml:"resource_dir" env:"MCP_RESOURCE_DIR"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Name:      "mcp-stdio-server",
		Version:   "1.0.0",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	envFiles []string
}

// WithEnvFiles replaces the dotenv files merged into the environment. Missing
// files are skipped. The default is ".env".
func WithEnvFiles(files ...string) Option {
	return func(o *loadOptions) { o.envFiles = files }
}

// Load builds a Config. path names an optional TOML file; when empty the
// MCP_CONFIG_FILE variable is consulted, and when that is empty too no file is
// read. Variables already present in the environment win over .env entries.
func Load(path string, opts ...Option) (*Config, error) {
	o := loadOptions{envFiles: []string{".env"}}
	for _, opt := range opts {
		opt(&o)
	}

	for _, f := range o.envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	if c.Name == "" {
		return errors.New("config: name is required")
	}
	if c.Version == "" {
		return errors.New("config: version is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
