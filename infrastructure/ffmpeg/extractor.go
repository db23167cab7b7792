package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"tiksound/domain/media"
	"tiksound/infrastructure/filesystem"
	"tiksound/infrastructure/process"
)

// Extractor implements media.AudioExtractor using ffmpeg
type Extractor struct {
	ffmpegPath string
	runner     process.Runner
	checker    media.FileChecker
	profile    media.AudioProfile
}

// ExtractorOption is a functional option for configuring Extractor
type ExtractorOption func(*Extractor)

// WithExtractorFFmpegPath sets a custom ffmpeg executable path
func WithExtractorFFmpegPath(path string) ExtractorOption {
	return func(e *Extractor) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

// WithExtractorRunner sets a custom command runner (for testing)
func WithExtractorRunner(runner process.Runner) ExtractorOption {
	return func(e *Extractor) {
		e.runner = runner
	}
}

// WithExtractorChecker sets the checker used to verify the output file
func WithExtractorChecker(checker media.FileChecker) ExtractorOption {
	return func(e *Extractor) {
		e.checker = checker
	}
}

// WithAudioProfile overrides the output bitrate, channels or sample rate
func WithAudioProfile(p media.AudioProfile) ExtractorOption {
	return func(e *Extractor) {
		e.profile = p.WithDefaults()
	}
}

// NewExtractor creates a new FFmpeg-based audio extractor
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		ffmpegPath: "ffmpeg",
		runner:     process.NewExecRunner(),
		checker:    filesystem.NewChecker(),
		profile:    media.DefaultAudioProfile(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Args returns the ffmpeg argument list for one extraction
func (e *Extractor) Args(videoPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", videoPath,
		"-vn",                   // No video
		"-acodec", "libmp3lame", // MP3 codec
		"-ab", e.profile.Bitrate,
		"-ac", strconv.Itoa(e.profile.Channels),
		"-ar", strconv.Itoa(e.profile.SampleRate),
		"-y", // Overwrite output file if it exists
		outputPath,
	}
}

// Extract implements media.AudioExtractor. A zero-byte output is treated as a
// failure even when ffmpeg exits cleanly.
func (e *Extractor) Extract(ctx context.Context, videoPath, outputPath string) error {
	if _, err := e.runner.Run(ctx, e.ffmpegPath, e.Args(videoPath, outputPath)...); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("%w: %w", media.ErrExtractionFailed, err)
	}

	size := e.checker.Size(outputPath)
	if size < 0 {
		return fmt.Errorf("%w: output not created: %s", media.ErrExtractionEmpty, outputPath)
	}
	if size == 0 {
		_ = os.Remove(outputPath)
		return fmt.Errorf("%w: %s", media.ErrExtractionEmpty, outputPath)
	}

	return nil
}

// VerifyInstalled checks that ffmpeg is available
func (e *Extractor) VerifyInstalled(ctx context.Context) error {
	if _, err := e.runner.Run(ctx, e.ffmpegPath, "-version"); err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// Ensure Extractor implements media.AudioExtractor
var _ media.AudioExtractor = (*Extractor)(nil)
