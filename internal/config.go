package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Storage  StorageConfig     `yaml:"storage"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Openai   OpenaiConfig      `yaml:"openai"`
	Autosave AutosaveConfig    `yaml:"autosave"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Openai.Validate(); err != nil {
		return err
	}
	if err := c.Autosave.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// StorageConfig holds the data directory layout. Notes and chat logs live
// in separate flat subdirectories of DataDir.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// NotesDir returns the note document directory.
func (c *StorageConfig) NotesDir() string { return c.DataDir + "/notes" }

// ChatsDir returns the chat log directory.
func (c *StorageConfig) ChatsDir() string { return c.DataDir + "/chats" }

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// OpenaiConfig tunes the AI operations. API keys are NOT configured here:
// every AI request carries the caller's key in a header.
type OpenaiConfig struct {
	Model string `yaml:"model"`
	// ImproveContext is the number of runes kept on each side of an
	// improved span when building the prompt.
	ImproveContext int `yaml:"improve_context"`
	// ApplyMinLength and ApplyMinRatio guard apply results against
	// truncation: for inputs of at least ApplyMinLength bytes, results
	// shorter than ApplyMinRatio times the input are discarded.
	ApplyMinLength int     `yaml:"apply_min_length"`
	ApplyMinRatio  float64 `yaml:"apply_min_ratio"`
}

// Validate validates the OpenAI configuration.
func (c *OpenaiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ImproveContext, validation.Min(0)),
		validation.Field(&c.ApplyMinLength, validation.Min(0)),
		validation.Field(&c.ApplyMinRatio, validation.Min(0.0), validation.Max(1.0)),
	)
}

// AutosaveConfig controls the editor draft debounce.
type AutosaveConfig struct {
	FlushSeconds int `yaml:"flush_seconds"`
}

// Interval returns the debounce interval as a duration.
func (c *AutosaveConfig) Interval() time.Duration {
	return time.Duration(c.FlushSeconds) * time.Second
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FlushSeconds, validation.Required, validation.Min(1), validation.Max(300)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
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
			DataDir: "./data",
		},
		SQLite: SQLiteConfig{
			Path: "./quill.db",
		},
		Openai: OpenaiConfig{
			Model:          "gpt-4o",
			ImproveContext: 200,
			ApplyMinLength: 100,
			ApplyMinRatio:  0.5,
		},
		Autosave: AutosaveConfig{
			FlushSeconds: 5,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
