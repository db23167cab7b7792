package media

import "context"

// MetadataProber fetches metadata for a source without downloading media.
// This is a port implemented by the downloader adapter.
type MetadataProber interface {
	Probe(ctx context.Context, src SourceReference) (*VideoMetadata, error)
}

// VideoFetcher downloads the source video into dir using baseName as the file stem
type VideoFetcher interface {
	Fetch(ctx context.Context, src SourceReference, dir, baseName string) (string, error)
}

// AudioExtractor transcodes a video file into an MP3 at outputPath
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath, outputPath string) error
}

// Classifier decides whether metadata describes an original-sound clip
type Classifier interface {
	Classify(meta VideoMetadata) ClassificationResult
}

// FileChecker defines the interface for checking file existence
type FileChecker interface {
	// Exists returns true if the file exists
	Exists(path string) bool
	// Size returns the file size in bytes, or -1 if the file is missing
	Size(path string) int64
}

// FileRemover deletes scratch files
type FileRemover interface {
	Remove(path string) error
}
