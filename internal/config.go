package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tome/internal/ai"
	"github.com/starford/tome/internal/seed"
	"github.com/starford/tome/internal/storage"
	"github.com/starford/tome/internal/store"
)

var storageKeyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Seed    SeedConfig        `yaml:"seed"`
	AI      AIConfig          `yaml:"ai"`
	Watch   WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Seed.Validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where the collection is persisted.
//
// Backend "file" keeps one JSON file per key in the Path directory;
// "sqlite" keeps a key/value table in the Path database file.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Key     string `yaml:"key"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = storage.BackendFile
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(storage.BackendFile, storage.BackendSQLite)),
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Key, validation.Required, validation.Match(storageKeyRe)),
	)
}

// SeedConfig locates the resource used to populate an empty knowledge base.
// Source may be a file path or an http(s) URL; empty disables seeding.
type SeedConfig struct {
	Source  string        `yaml:"source"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the seed configuration.
func (c *SeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// AIConfig holds the generative-text credential and model. An empty APIKey
// falls back to the API_KEY and GEMINI_API_KEY environment variables.
type AIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// WatchConfig controls reloading when the storage file changes on disk.
// Only the file backend is watched.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Backend: storage.BackendFile,
			Path:    "./data/store",
			Key:     store.DefaultKey,
		},
		Seed: SeedConfig{
			Source:  seed.DefaultSource,
			Timeout: 10 * time.Second,
		},
		AI: AIConfig{
			Model: ai.DefaultModel,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
}
