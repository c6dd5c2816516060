package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SystemRCFile is read before the user's resource file unless -n is given.
const SystemRCFile = "/etc/nmail.rc"

// HistoryConfig controls the persistent prompt history.
type HistoryConfig struct {
	// Enabled turns the history database on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `mapstructure:"path" yaml:"path"`

	// Size is how many entries are loaded into the line editor and kept
	// when the database is trimmed. The history-size variable overrides it.
	Size int `mapstructure:"size" yaml:"size"`
}

// LoggingConfig holds diagnostic logging settings.
type LoggingConfig struct {
	// Verbosity is the commonlog verbosity: 0 notices and worse,
	// 1 info, 2 debug; negative silences logging.
	Verbosity int `mapstructure:"verbosity" yaml:"verbosity"`

	// File receives log output instead of stderr when set.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// RCFiles are sourced in order at start-up.
	RCFiles []string `mapstructure:"rc_files" yaml:"rc_files"`

	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Variables are assigned after the resource files, like -S.
	Variables map[string]string `mapstructure:"variables" yaml:"variables"`

	// Ghosts are command aliases defined before the resource files run.
	Ghosts map[string]string `mapstructure:"ghosts" yaml:"ghosts"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/nmail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "nmail", "config.yaml")
}

func defaultRCFiles() []string {
	files := []string{SystemRCFile}
	if rc := os.Getenv("MAILRC"); rc != "" {
		return append(files, rc)
	}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".nmailrc"))
	}
	return files
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "nmail-history.db")
	}
	return filepath.Join(home, ".local", "state", "nmail", "history.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		RCFiles: defaultRCFiles(),
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath(),
			Size:    500,
		},
		Logging: LoggingConfig{
			Verbosity: 0,
		},
		Variables: map[string]string{},
		Ghosts:    map[string]string{},
	}
}

// RegisterFlags adds the flags that override configuration keys.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringSlice("rc", nil, "resource files to source instead of the configured ones")
	fs.String("history-file", "", "history database path")
	fs.Bool("no-history", false, "do not record prompt history")
	fs.Int("verbosity", 0, "log verbosity (-1 silent, 1 info, 2 debug)")
	fs.String("log-file", "", "write logs to this file")
}

var flagKeys = map[string]string{
	"rc":           "rc_files",
	"history-file": "history.path",
	"verbosity":    "logging.verbosity",
	"log-file":     "logging.file",
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values from NMAIL_* environment variables and from flags set on fs take
// precedence. If the file does not exist, defaults are used.
func LoadConfig(path string, fs *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultAppConfig()
	v.SetDefault("rc_files", def.RCFiles)
	v.SetDefault("history.enabled", def.History.Enabled)
	v.SetDefault("history.path", def.History.Path)
	v.SetDefault("history.size", def.History.Size)
	v.SetDefault("logging.verbosity", def.Logging.Verbosity)
	v.SetDefault("logging.file", "")

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if fs != nil {
		if f := fs.Lookup("no-history"); f != nil && f.Changed {
			cfg.History.Enabled = false
		}
	}
	if cfg.History.Size <= 0 {
		cfg.History.Size = def.History.Size
	}
	if cfg.Variables == nil {
		cfg.Variables = map[string]string{}
	}
	if cfg.Ghosts == nil {
		cfg.Ghosts = map[string]string{}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("rc_files", cfg.RCFiles)
	v.Set("history", cfg.History)
	v.Set("logging", cfg.Logging)
	v.Set("variables", cfg.Variables)
	v.Set("ghosts", cfg.Ghosts)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
