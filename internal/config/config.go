// Package config loads agenda settings from layered YAML files and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	dirName   = ".agenda"
	fileName  = "config.yaml"
	envPrefix = "AGENDA"
)

type Config struct {
	DBPath       string `yaml:"db_path" mapstructure:"db_path"`
	SnapshotPath string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
	// OwnerID scopes every command to one owner's tasks.
	OwnerID string `yaml:"owner_id" mapstructure:"owner_id"`

	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Web        WebConfig        `yaml:"web" mapstructure:"web"`
	Reschedule RescheduleConfig `yaml:"reschedule" mapstructure:"reschedule"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level"`
	// Format is json or text.
	Format string `yaml:"format" mapstructure:"format"`
}

type WebConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// RescheduleConfig holds the default options of every reschedule.
type RescheduleConfig struct {
	KeepOrder     bool   `yaml:"keep_order" mapstructure:"keep_order"`
	KeepChecklist bool   `yaml:"keep_checklist" mapstructure:"keep_checklist"`
	Reason        string `yaml:"reason" mapstructure:"reason"`
}

type WatchConfig struct {
	// Interval between polls for writes by other processes. Zero disables
	// watching.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:       filepath.Join(dirName, "agenda.db"),
		SnapshotPath: filepath.Join(dirName, "agenda.jsonl"),
		OwnerID:      defaultOwner(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Web: WebConfig{
			Port: 8000,
		},
		Watch: WatchConfig{
			Interval: 2 * time.Second,
		},
	}
}

func defaultOwner() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

// Load merges the global config, the project config and AGENDA_*
// environment variables over the defaults, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil {
		if err := loadFile(filepath.Join(home, dirName, fileName), cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load global config: %w", err)
		}
	}

	if err := loadFile(ProjectPath(), cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single config file over the defaults plus environment
// overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}

var envKeys = []string{
	"db_path", "snapshot_path", "owner_id",
	"log.level", "log.format",
	"web.port",
	"reschedule.keep_order", "reschedule.keep_checklist", "reschedule.reason",
	"watch.interval",
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	set := map[string]any{}
	for _, key := range envKeys {
		if v.IsSet(key) {
			setNested(set, key, v.Get(key))
		}
	}
	if len(set) == 0 {
		return nil
	}

	merged := viper.New()
	if err := merged.MergeConfigMap(set); err != nil {
		return fmt.Errorf("failed to merge env config: %w", err)
	}
	if err := merged.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to apply env config: %w", err)
	}
	return nil
}

func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[p] = child
		}
		m = child
	}
	m[parts[len(parts)-1]] = value
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ProjectPath returns the project config file in the working directory.
func ProjectPath() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, dirName, fileName)
}

// GlobalPath returns the per-user config file.
func GlobalPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName, fileName)
}
