package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "tracker.yaml"

type Config struct {
	WowPath            string        `yaml:"wow_path"`
	SavedVariablesFile string        `yaml:"saved_variables_file,omitempty"`
	Marker             string        `yaml:"marker"`
	Container          string        `yaml:"container"`
	UpdateIntervalSecs int           `yaml:"update_interval"`
	WorkerCount        int           `yaml:"worker_count"`
	API                APIConfig     `yaml:"api"`
	History            HistoryConfig `yaml:"history"`
	Logging            LoggingConfig `yaml:"logging"`
}

type APIConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	Key            string `yaml:"key,omitempty"`
	MainCharacter  string `yaml:"main_character,omitempty"`
	OnlySendMain   bool   `yaml:"only_send_main"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	InsecureTLS    bool   `yaml:"insecure_tls"`
}

type HistoryConfig struct {
	Backend      string `yaml:"backend"` // "json", "bolt" or "postgres"
	Path         string `yaml:"path"`
	BoltPath     string `yaml:"bolt_path"`
	DatabaseURL  string `yaml:"database_url,omitempty"`
	MaxSnapshots int    `yaml:"max_snapshots"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func Default() *Config {
	return &Config{
		WowPath:            "G:/World of Warcraft/_classic_era_",
		Marker:             "CattosItemTracker_DB",
		Container:          "characters",
		UpdateIntervalSecs: 5,
		WorkerCount:        4,
		API: APIConfig{
			Enabled:        true,
			URL:            "https://clip.jetzt/api/connect",
			TimeoutSeconds: 10,
		},
		History: HistoryConfig{
			Backend:      "json",
			Path:         "equipment_history.json",
			BoltPath:     "equipment_history.db",
			MaxSnapshots: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}
	cfg.applyEnv()

	return cfg, nil
}

// LoadFile reads the YAML file at path over the defaults without consulting
// the environment. Use it when the result is written back with Save.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.Debug().Str("path", path).Msg("No config file found, using defaults")
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.WowPath = getEnv("CATTOS_WOW_PATH", c.WowPath)
	c.SavedVariablesFile = getEnv("CATTOS_SAVED_VARIABLES", c.SavedVariablesFile)
	c.UpdateIntervalSecs = getEnvInt("CATTOS_UPDATE_INTERVAL", c.UpdateIntervalSecs)
	c.WorkerCount = getEnvInt("CATTOS_WORKER_COUNT", c.WorkerCount)
	c.API.Enabled = getEnvBool("CATTOS_API_ENABLED", c.API.Enabled)
	c.API.URL = getEnv("CATTOS_API_URL", c.API.URL)
	c.API.Key = getEnv("CATTOS_API_KEY", c.API.Key)
	c.API.MainCharacter = getEnv("CATTOS_MAIN_CHARACTER", c.API.MainCharacter)
	c.History.Backend = getEnv("CATTOS_HISTORY_BACKEND", c.History.Backend)
	c.History.DatabaseURL = getEnv("DATABASE_URL", c.History.DatabaseURL)
	c.Logging.Level = getEnv("CATTOS_LOG_LEVEL", c.Logging.Level)
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	log.Info().Str("path", path).Msg("Saved config")
	return nil
}

// UpdateInterval is the poll period, at least one second.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(max(c.UpdateIntervalSecs, 1)) * time.Second
}

// APITimeout is the per-request timeout of the delivery client.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(max(c.API.TimeoutSeconds, 1)) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
