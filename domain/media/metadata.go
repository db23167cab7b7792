package media

// VideoMetadata is the subset of the downloader's JSON dump used for classification.
// Field names follow the keys yt-dlp writes with --dump-json.
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	Uploader    string   `json:"uploader,omitempty"`
	UploaderID  string   `json:"uploader_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	FormatNote  string   `json:"format_note,omitempty"`
}

// HasDuration returns true if the downloader reported a duration
func (m VideoMetadata) HasDuration() bool {
	return m.Duration != nil
}

// ClassificationResult records whether a clip was judged to carry original sound
type ClassificationResult struct {
	OriginalSound bool
	// MatchedBy is the name of the heuristic that decided the outcome
	MatchedBy string
	Metadata  VideoMetadata
}
