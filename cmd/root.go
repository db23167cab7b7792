package cmd

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"tiksound/infrastructure/config"
	"tiksound/infrastructure/logger"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

var (
	cfgFile string
	cfg     *config.Config
	cfgErr  error
)

var rootCmd = &cobra.Command{
	Use:   "tiksound",
	Short: "Extract original sounds from TikTok clips as MP3",
	Long: `tiksound downloads a TikTok clip, decides whether it carries the creator's
original sound and, if so, extracts the audio track as an MP3:

  - Probe clip metadata with yt-dlp
  - Classify original sound vs. overlaid music
  - Download the video (720p max) and transcode with ffmpeg
  - Serve the MP3 for a limited time, then sweep it away

Example:
  tiksound serve
  tiksound extract --url https://www.tiktok.com/@user/video/7234567890123456789`,
	SilenceUsage: true,
}

func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = defaultConfigPath
	}

	// A missing file is fine; defaults and environment variables apply
	cfg, cfgErr = config.Resolve(cfgFile)
}

// GetConfig returns the resolved configuration
func GetConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", cfgFile, cfgErr)
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// setupLogger installs the global logger described by c
func setupLogger(c *config.Config) (*zap.Logger, error) {
	l, err := logger.Init(logger.Config{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
		Console:    c.IsDevelopment(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise logger: %w", err)
	}
	return l, nil
}
