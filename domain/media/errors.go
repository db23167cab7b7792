package media

import "errors"

var (
	// ErrInvalidInput is returned when the submitted URL is missing or not a recognised video link
	ErrInvalidInput = errors.New("invalid input")

	// ErrToolUnavailable is returned when an external executable cannot be found or spawned
	ErrToolUnavailable = errors.New("external tool unavailable")

	// ErrToolFailed is returned when an external executable exits with a nonzero status
	ErrToolFailed = errors.New("external tool failed")

	// ErrMetadataUnparsable is returned when the downloader's metadata dump is not valid JSON
	ErrMetadataUnparsable = errors.New("metadata unparsable")

	// ErrDownloadFailed is returned when the video could not be downloaded
	ErrDownloadFailed = errors.New("download failed")

	// ErrExtractionFailed is returned when the transcoder fails to produce audio
	ErrExtractionFailed = errors.New("audio extraction failed")

	// ErrExtractionEmpty is returned when the transcoder succeeds but writes an empty file
	ErrExtractionEmpty = errors.New("extracted audio file is empty")

	// ErrNotFound is returned when a requested scratch file does not exist
	ErrNotFound = errors.New("file not found")
)
