package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// keySpec binds a dotted config key to one Config field. Exactly one of str
// and num is set.
type keySpec struct {
	key string
	env string
	str func(*Config) *string
	num func(*Config) *int
}

func stringKey(key string, field func(*Config) *string) keySpec {
	return keySpec{key: key, env: envName(key), str: field}
}

func intKey(key string, field func(*Config) *int) keySpec {
	return keySpec{key: key, env: envName(key), num: field}
}

// envName maps "api.base_url" to "MBTICHAT_API_BASE_URL".
func envName(key string) string {
	return "MBTICHAT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

var specs = []keySpec{
	intKey("server.port", func(c *Config) *int { return &c.Server.Port }),
	stringKey("api.base_url", func(c *Config) *string { return &c.API.BaseURL }),
	stringKey("api.timeout", func(c *Config) *string { return &c.API.Timeout }),
	stringKey("storage.data_dir", func(c *Config) *string { return &c.Storage.DataDir }),
	stringKey("session.greeting", func(c *Config) *string { return &c.Session.Greeting }),
	stringKey("session.reset_greeting", func(c *Config) *string { return &c.Session.ResetGreeting }),
	intKey("session.history_window", func(c *Config) *int { return &c.Session.HistoryWindow }),
	stringKey("log.level", func(c *Config) *string { return &c.Log.Level }),
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse stores raw into cfg, converting it for integer keys.
func (s keySpec) parse(cfg *Config, raw string) error {
	if s.str != nil {
		*s.str(cfg) = raw
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %w", s.key, err)
	}
	*s.num(cfg) = n
	return nil
}

// format renders the key's current value in cfg.
func (s keySpec) format(cfg Config) string {
	if s.str != nil {
		return *s.str(&cfg)
	}
	return strconv.Itoa(*s.num(&cfg))
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.str != nil {
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				*s.str(cfg) = v
			}
			continue
		}
		v, ok, err := b.GetInt(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if ok {
			*s.num(cfg) = v
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		if err := s.parse(cfg, raw); err != nil {
			slog.Warn("ignoring env override", "var", s.env, "value", raw, "error", err)
		}
	}
}
