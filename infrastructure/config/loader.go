package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultPublicBaseURL is the download link base used until one is configured
const DefaultPublicBaseURL = "http://localhost:3001"

// Config represents the complete application configuration.
// It is resolved once at start-up and not mutated while serving.
type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Paths       PathsConfig      `yaml:"paths"`
	Tools       ToolsConfig      `yaml:"tools"`
	Audio       AudioConfig      `yaml:"audio"`
	Download    DownloadConfig   `yaml:"download"`
	Retention   RetentionConfig  `yaml:"retention"`
	RateLimit   RateLimitConfig  `yaml:"ratelimit"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Log         LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	PublicBaseURL string        `yaml:"public_base_url"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	TrustProxy    bool          `yaml:"trust_proxy"`
}

// PathsConfig contains directory paths for media processing
type PathsConfig struct {
	ScratchDirectory string `yaml:"scratch_directory"`
}

// ToolsConfig locates the external executables
type ToolsConfig struct {
	YtDlpPath  string        `yaml:"ytdlp_path"`
	FFmpegPath string        `yaml:"ffmpeg_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// AudioConfig contains audio extraction settings
type AudioConfig struct {
	Bitrate    string `yaml:"bitrate"`
	Channels   int    `yaml:"channels"`
	SampleRate int    `yaml:"sample_rate"`
}

// DownloadConfig contains video download settings
type DownloadConfig struct {
	MaxHeight int `yaml:"max_height"`
}

// RetentionConfig controls the scratch directory sweeper
type RetentionConfig struct {
	Window   time.Duration `yaml:"window"`
	Interval time.Duration `yaml:"interval"`
}

// RateLimitConfig controls admission to the extract endpoint
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Window        time.Duration `yaml:"window"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// ClassifierConfig tunes the original-sound classifier
type ClassifierConfig struct {
	// DefaultOriginal is the outcome when no heuristic matches
	DefaultOriginal bool `yaml:"default_original"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Environment: EnvProduction,
		Server: ServerConfig{
			Addr:          ":3001",
			PublicBaseURL: DefaultPublicBaseURL,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  10 * time.Minute,
			IdleTimeout:   120 * time.Second,
		},
		Paths: PathsConfig{
			ScratchDirectory: "downloads",
		},
		Tools: ToolsConfig{
			YtDlpPath:  "yt-dlp",
			FFmpegPath: "ffmpeg",
			Timeout:    3 * time.Minute,
		},
		Audio: AudioConfig{
			Bitrate:    "128k",
			Channels:   2,
			SampleRate: 44100,
		},
		Download: DownloadConfig{
			MaxHeight: 720,
		},
		Retention: RetentionConfig{
			Window:   10 * time.Minute,
			Interval: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Window:  10 * time.Second,
		},
		Classifier: ClassifierConfig{
			DefaultOriginal: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     14,
		},
	}
}

// Load reads and parses the configuration from the specified YAML file.
// Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns Default()
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Resolve loads the file at path (optional), applies a .env file if present and
// then environment variables, and validates the result.
func Resolve(path string) (*Config, error) {
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	// godotenv.Load does not override variables that are already set
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables onto cfg
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("TIKSOUND_ENV", &c.Environment)
	str("TIKSOUND_ADDR", &c.Server.Addr)
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	str("TIKSOUND_PUBLIC_BASE_URL", &c.Server.PublicBaseURL)
	if c.Server.PublicBaseURL == DefaultPublicBaseURL {
		c.Server.PublicBaseURL = LocalBaseURL(c.Server.Addr)
	}
	str("TIKSOUND_SCRATCH_DIR", &c.Paths.ScratchDirectory)
	str("YTDLP_PATH", &c.Tools.YtDlpPath)
	str("FFMPEG_PATH", &c.Tools.FFmpegPath)
	str("AUDIO_BITRATE", &c.Audio.Bitrate)
	str("REDIS_ADDR", &c.RateLimit.RedisAddr)
	str("REDIS_PASSWORD", &c.RateLimit.RedisPassword)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.RateLimit.RedisDB = db
	}
	if v, ok := lookup("TOOLS_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TOOLS_TIMEOUT %q: %w", v, err)
		}
		c.Tools.Timeout = d
	}
	return nil
}

// LocalBaseURL returns the http base URL for reaching addr from this host.
// An unparsable addr gives DefaultPublicBaseURL.
func LocalBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return DefaultPublicBaseURL
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Paths.ScratchDirectory == "" {
		errs = append(errs, errors.New("paths.scratch_directory is required"))
	}
	if c.Tools.YtDlpPath == "" || c.Tools.FFmpegPath == "" {
		errs = append(errs, errors.New("tools.ytdlp_path and tools.ffmpeg_path are required"))
	}
	if c.Tools.Timeout <= 0 {
		errs = append(errs, errors.New("tools.timeout must be positive"))
	}
	if c.Download.MaxHeight <= 0 {
		errs = append(errs, errors.New("download.max_height must be positive"))
	}
	if c.Retention.Window <= 0 || c.Retention.Interval <= 0 {
		errs = append(errs, errors.New("retention.window and retention.interval must be positive"))
	}
	// a downloaded video must outlive the fetch and extract stages before it becomes sweepable
	if c.Retention.Window > 0 && c.Tools.Timeout > 0 && c.Retention.Window < 2*c.Tools.Timeout {
		errs = append(errs, fmt.Errorf("retention.window (%s) must be at least twice tools.timeout (%s)", c.Retention.Window, c.Tools.Timeout))
	}
	// a successful extract runs three tools before the response is written
	if c.Server.WriteTimeout > 0 && c.Tools.Timeout > 0 && c.Server.WriteTimeout < 3*c.Tools.Timeout {
		errs = append(errs, fmt.Errorf("server.write_timeout (%s) must cover three tool runs of tools.timeout (%s)", c.Server.WriteTimeout, c.Tools.Timeout))
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether the development environment is selected
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}
