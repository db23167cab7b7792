package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tiksound/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through setting up the listen address, scratch
directory, tool locations, audio settings, retention and rate limiting.
Press enter to accept the default shown for each question.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath
	}
	return RunSetupWithPrompter(DefaultPrompter, path, DefaultOutput)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string, out OutputWriter) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to tiksound setup!")
	fmt.Fprintln(out)

	cfg := config.Default()

	if err := promptServer(prompter, cfg); err != nil {
		return err
	}
	if err := promptTools(prompter, cfg); err != nil {
		return err
	}
	if err := promptAudio(prompter, cfg); err != nil {
		return err
	}
	if err := promptRetention(prompter, cfg); err != nil {
		return err
	}
	if err := promptRateLimit(prompter, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Save configuration
	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	return nil
}

// ask prompts with a default and returns the default for empty answers
func ask(prompter Prompter, message, defaultValue string) (string, error) {
	answer, err := prompter.Input(message, defaultValue)
	if err != nil {
		return "", fmt.Errorf("prompt cancelled")
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

func promptServer(prompter Prompter, cfg *config.Config) error {
	addr, err := ask(prompter, "Address to listen on?", cfg.Server.Addr)
	if err != nil {
		return err
	}
	cfg.Server.Addr = addr
	if cfg.Server.PublicBaseURL == config.DefaultPublicBaseURL {
		cfg.Server.PublicBaseURL = config.LocalBaseURL(addr)
	}

	baseURL, err := ask(prompter, "Public base URL for download links?", cfg.Server.PublicBaseURL)
	if err != nil {
		return err
	}
	cfg.Server.PublicBaseURL = strings.TrimRight(baseURL, "/")

	scratch, err := ask(prompter, "Where should downloads and MP3s be kept?", cfg.Paths.ScratchDirectory)
	if err != nil {
		return err
	}
	cfg.Paths.ScratchDirectory = scratch

	trust, err := prompter.Confirm("Is the service behind a reverse proxy (trust X-Forwarded-For)?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Server.TrustProxy = trust
	return nil
}

func promptTools(prompter Prompter, cfg *config.Config) error {
	ytdlp, err := ask(prompter, "Path to yt-dlp?", cfg.Tools.YtDlpPath)
	if err != nil {
		return err
	}
	cfg.Tools.YtDlpPath = ytdlp

	ffmpegPath, err := ask(prompter, "Path to ffmpeg?", cfg.Tools.FFmpegPath)
	if err != nil {
		return err
	}
	cfg.Tools.FFmpegPath = ffmpegPath
	return nil
}

func promptAudio(prompter Prompter, cfg *config.Config) error {
	bitrate, err := ask(prompter, "Audio bitrate for mp3 extraction?", cfg.Audio.Bitrate)
	if err != nil {
		return err
	}
	cfg.Audio.Bitrate = bitrate

	height, err := ask(prompter, "Maximum video height to download?", strconv.Itoa(cfg.Download.MaxHeight))
	if err != nil {
		return err
	}
	h, err := strconv.Atoi(height)
	if err != nil || h <= 0 {
		return fmt.Errorf("maximum height must be a positive number, got %q", height)
	}
	cfg.Download.MaxHeight = h
	return nil
}

func promptRetention(prompter Prompter, cfg *config.Config) error {
	window, err := ask(prompter, "How long should files be kept?", cfg.Retention.Window.String())
	if err != nil {
		return err
	}
	d, err := time.ParseDuration(window)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", window, err)
	}
	cfg.Retention.Window = d
	return nil
}

func promptRateLimit(prompter Prompter, cfg *config.Config) error {
	enabled, err := prompter.Confirm("Limit each client to one extraction per window?", true)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.RateLimit.Enabled = enabled
	if !enabled {
		return nil
	}

	redisAddr, err := ask(prompter, "Redis address for a shared limit (leave empty for in-memory)?", "")
	if err != nil {
		return err
	}
	cfg.RateLimit.RedisAddr = redisAddr
	return nil
}
