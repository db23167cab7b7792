package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Errors for config management
var (
	ErrUnknownKey   = errors.New("unknown config key")
	ErrInvalidValue = errors.New("invalid config value")
)

// field binds a dotted key to accessors on Config
type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

var fields = map[string]field{
	"environment":                 stringField(func(c *Config) *string { return &c.Environment }),
	"server.addr":                 stringField(func(c *Config) *string { return &c.Server.Addr }),
	"server.public_base_url":      stringField(func(c *Config) *string { return &c.Server.PublicBaseURL }),
	"server.read_timeout":         durationField(func(c *Config) *time.Duration { return &c.Server.ReadTimeout }),
	"server.write_timeout":        durationField(func(c *Config) *time.Duration { return &c.Server.WriteTimeout }),
	"server.idle_timeout":         durationField(func(c *Config) *time.Duration { return &c.Server.IdleTimeout }),
	"server.trust_proxy":          boolField(func(c *Config) *bool { return &c.Server.TrustProxy }),
	"paths.scratch_directory":     stringField(func(c *Config) *string { return &c.Paths.ScratchDirectory }),
	"tools.ytdlp_path":            stringField(func(c *Config) *string { return &c.Tools.YtDlpPath }),
	"tools.ffmpeg_path":           stringField(func(c *Config) *string { return &c.Tools.FFmpegPath }),
	"tools.timeout":               durationField(func(c *Config) *time.Duration { return &c.Tools.Timeout }),
	"audio.bitrate":               stringField(func(c *Config) *string { return &c.Audio.Bitrate }),
	"audio.channels":              intField(func(c *Config) *int { return &c.Audio.Channels }),
	"audio.sample_rate":           intField(func(c *Config) *int { return &c.Audio.SampleRate }),
	"download.max_height":         intField(func(c *Config) *int { return &c.Download.MaxHeight }),
	"retention.window":            durationField(func(c *Config) *time.Duration { return &c.Retention.Window }),
	"retention.interval":          durationField(func(c *Config) *time.Duration { return &c.Retention.Interval }),
	"ratelimit.enabled":           boolField(func(c *Config) *bool { return &c.RateLimit.Enabled }),
	"ratelimit.window":            durationField(func(c *Config) *time.Duration { return &c.RateLimit.Window }),
	"ratelimit.redis_addr":        stringField(func(c *Config) *string { return &c.RateLimit.RedisAddr }),
	"ratelimit.redis_password":    stringField(func(c *Config) *string { return &c.RateLimit.RedisPassword }),
	"ratelimit.redis_db":          intField(func(c *Config) *int { return &c.RateLimit.RedisDB }),
	"classifier.default_original": boolField(func(c *Config) *bool { return &c.Classifier.DefaultOriginal }),
	"log.level":                   stringField(func(c *Config) *string { return &c.Log.Level }),
	"log.file":                    stringField(func(c *Config) *string { return &c.Log.File }),
}

// ConfigManager provides get/set access to config entries by dotted key
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(cfg *Config, configPath string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: configPath,
	}
}

// Keys returns every settable key, sorted
func (m *ConfigManager) Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the string form of key
func (m *ConfigManager) Get(key string) (string, error) {
	f, ok := fields[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f.get(m.config), nil
}

// Set parses value into key, validates the whole config and saves it.
// On failure the in-memory config is left unchanged.
func (m *ConfigManager) Set(key, value string) error {
	f, ok := fields[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	updated := *m.config
	if err := f.set(&updated, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	*m.config = updated
	return m.save()
}

// Config returns the managed configuration
func (m *ConfigManager) Config() *Config {
	return m.config
}

func (m *ConfigManager) save() error {
	if m.configPath == "" {
		return nil
	}
	return Save(m.config, m.configPath)
}

func stringField(ptr func(*Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, v string) error {
			*ptr(c) = v
			return nil
		},
	}
}

func intField(ptr func(*Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*ptr(c) = n
			return nil
		},
	}
}

func boolField(ptr func(*Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*ptr(c) = b
			return nil
		},
	}
}

func durationField(ptr func(*Config) *time.Duration) field {
	return field{
		get: func(c *Config) string { return ptr(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*ptr(c) = d
			return nil
		},
	}
}
