package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"tiksound/domain/media"
)

// Prober implements media.MetadataProber by dumping yt-dlp's JSON without downloading
type Prober struct {
	*Client
}

// NewProber creates a new Prober
func NewProber(c *Client) *Prober {
	return &Prober{Client: c}
}

// Probe implements media.MetadataProber
func (p *Prober) Probe(ctx context.Context, src media.SourceReference) (*media.VideoMetadata, error) {
	args := []string{
		"--dump-json",
		"--no-download",
		"--no-warnings",
		"--no-playlist",
		src.String(),
	}

	res, err := p.runner.Run(ctx, p.binaryPath, args...)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata probe failed: %w", err)
	}

	out := bytes.TrimSpace(res.Stdout)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: yt-dlp produced no output", media.ErrMetadataUnparsable)
	}

	var meta media.VideoMetadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrMetadataUnparsable, err)
	}

	p.logger.Debug("probed metadata",
		zap.String("url", src.String()),
		zap.String("title", meta.Title),
		zap.String("uploader", meta.Uploader),
	)
	return &meta, nil
}

var _ media.MetadataProber = (*Prober)(nil)
