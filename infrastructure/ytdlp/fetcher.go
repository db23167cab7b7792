package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"tiksound/domain/media"
	"tiksound/infrastructure/filesystem"
)

// VideoExtensions are the containers yt-dlp may negotiate for a download
var VideoExtensions = []string{".mp4", ".webm", ".mkv", ".mov"}

// Fetcher implements media.VideoFetcher using yt-dlp in download mode
type Fetcher struct {
	*Client
}

// NewFetcher creates a new Fetcher
func NewFetcher(c *Client) *Fetcher {
	return &Fetcher{Client: c}
}

// Fetch implements media.VideoFetcher. The file extension is chosen by yt-dlp;
// the returned path is discovered by scanning dir for baseName.*
func (f *Fetcher) Fetch(ctx context.Context, src media.SourceReference, dir, baseName string) (string, error) {
	if baseName == "" {
		return "", fmt.Errorf("%w: base name is required", media.ErrDownloadFailed)
	}

	args := []string{
		"--output", filepath.Join(dir, baseName+".%(ext)s"),
		"--format", f.FormatSelector(),
		"--no-playlist",
		"--no-warnings",
		"--no-part",
		"--no-mtime", // retention ages files by mtime
		src.String(),
	}

	if _, err := f.runner.Run(ctx, f.binaryPath, args...); err != nil {
		return "", fmt.Errorf("%w: %w", media.ErrDownloadFailed, err)
	}

	path, err := filesystem.NewScratchDir(dir).FindByPrefix(baseName, VideoExtensions...)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return "", fmt.Errorf("%w: downloaded file not found", media.ErrDownloadFailed)
		}
		return "", fmt.Errorf("%w: %w", media.ErrDownloadFailed, err)
	}

	f.logger.Debug("video downloaded", zap.String("path", path))
	return path, nil
}

// FormatSelector returns the yt-dlp format expression honouring the height cap
func (f *Fetcher) FormatSelector() string {
	return fmt.Sprintf("best[height<=%d]", f.maxHeight)
}

var _ media.VideoFetcher = (*Fetcher)(nil)
