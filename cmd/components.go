package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tiksound/application/extraction"
	"tiksound/domain/detection"
	"tiksound/domain/media"
	"tiksound/infrastructure/config"
	"tiksound/infrastructure/ffmpeg"
	"tiksound/infrastructure/filesystem"
	"tiksound/infrastructure/process"
	"tiksound/infrastructure/ytdlp"
)

// Components holds the production implementations wired from config
type Components struct {
	Scratch    *filesystem.ScratchDir
	Runner     *process.ExecRunner
	YtDlp      *ytdlp.Client
	Prober     *ytdlp.Prober
	Fetcher    *ytdlp.Fetcher
	Extractor  *ffmpeg.Extractor
	Classifier *detection.Classifier

	YtDlpPath  string
	FFmpegPath string
}

// NewComponents builds the pipeline collaborators described by c
func NewComponents(c *config.Config, log *zap.Logger) *Components {
	runner := process.NewExecRunner(
		process.WithTimeout(c.Tools.Timeout),
		process.WithLogger(log),
	)
	client := ytdlp.NewClient(
		ytdlp.WithBinaryPath(c.Tools.YtDlpPath),
		ytdlp.WithRunner(runner),
		ytdlp.WithMaxHeight(c.Download.MaxHeight),
		ytdlp.WithLogger(log),
	)
	profile := media.AudioProfile{
		Bitrate:    c.Audio.Bitrate,
		Channels:   c.Audio.Channels,
		SampleRate: c.Audio.SampleRate,
	}.WithDefaults()

	return &Components{
		Scratch: filesystem.NewScratchDir(c.Paths.ScratchDirectory),
		Runner:  runner,
		YtDlp:   client,
		Prober:  ytdlp.NewProber(client),
		Fetcher: ytdlp.NewFetcher(client),
		Extractor: ffmpeg.NewExtractor(
			ffmpeg.WithExtractorFFmpegPath(c.Tools.FFmpegPath),
			ffmpeg.WithExtractorRunner(runner),
			ffmpeg.WithAudioProfile(profile),
		),
		Classifier: detection.NewClassifier(
			detection.WithDefaultOriginal(c.Classifier.DefaultOriginal),
		),
		YtDlpPath:  c.Tools.YtDlpPath,
		FFmpegPath: c.Tools.FFmpegPath,
	}
}

// Service builds the extraction service over the components
func (c *Components) Service(opts ...extraction.Option) *extraction.Service {
	return extraction.NewService(c.Prober, c.Classifier, c.Fetcher, c.Extractor, c.Scratch, opts...)
}

// VerifyTools checks that yt-dlp and ffmpeg resolve on PATH and can be executed
func (c *Components) VerifyTools(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if err := verifyTool(ctx, c.YtDlpPath, c.YtDlp.VerifyInstalled); err != nil {
		errs = append(errs, fmt.Errorf("yt-dlp verification failed: %w", err))
	}
	if err := verifyTool(ctx, c.FFmpegPath, c.Extractor.VerifyInstalled); err != nil {
		errs = append(errs, fmt.Errorf("ffmpeg verification failed: %w", err))
	}
	return errors.Join(errs...)
}

func verifyTool(ctx context.Context, path string, run func(context.Context) error) error {
	if err := process.LookPath(path); err != nil {
		return err
	}
	return run(ctx)
}
