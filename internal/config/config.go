package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server  ServerConfig
	API     APIConfig
	Storage StorageConfig
	Session SessionConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int `validate:"min=1,max=65535"`
}

// APIConfig points at the remote analysis service.
type APIConfig struct {
	BaseURL string `validate:"required,url"`
	Timeout string `validate:"required,duration"`
}

// TimeoutDuration parses Timeout. Load has already validated it.
func (c APIConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

type StorageConfig struct {
	DataDir string `validate:"required"`
}

type SessionConfig struct {
	Greeting      string
	ResetGreeting string
	HistoryWindow int `validate:"gte=0,lte=1000"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: "60s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Session: SessionConfig{
			HistoryWindow: 0, // send the whole log
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// configValidate checks a loaded Config. Initialized in init() with the
// duration rule registered.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = configValidate.RegisterValidation("duration", validateDuration)
}

// validateDuration accepts strings that time.ParseDuration reads as a
// positive duration.
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate reports the first invalid field, if any.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: com.mbtichat.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/mbtichat/config.json.
//
// Environment variables (MBTICHAT_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
