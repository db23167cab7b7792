package detection

import (
	"strings"

	"tiksound/domain/media"
)

// Heuristic names, in evaluation order
const (
	HeuristicTitleOrDescription = "title-or-description"
	HeuristicUploaderMatchesID  = "uploader-matches-id"
	HeuristicTagMentionsSound   = "tag-mentions-sound"
	HeuristicShortClip          = "short-clip"
	HeuristicFormatNote         = "format-note"
	HeuristicDefault            = "default"
)

// ShortClipSeconds is the duration below which a clip is assumed to be original
const ShortClipSeconds = 10.0

// Heuristic is a named predicate over clip metadata. A match decides the
// classification; the first matching heuristic wins.
type Heuristic struct {
	Name  string
	Match func(meta media.VideoMetadata) bool
}

// Classifier evaluates heuristics in order and stops at the first match
type Classifier struct {
	heuristics      []Heuristic
	defaultOriginal bool
}

// ClassifierOption configures a Classifier
type ClassifierOption func(*Classifier)

// WithHeuristics replaces the heuristic chain
func WithHeuristics(h ...Heuristic) ClassifierOption {
	return func(c *Classifier) {
		c.heuristics = h
	}
}

// WithDefaultOriginal sets the outcome used when no heuristic matches
func WithDefaultOriginal(original bool) ClassifierOption {
	return func(c *Classifier) {
		c.defaultOriginal = original
	}
}

// NewClassifier creates a classifier using DefaultHeuristics.
// Unmatched clips are treated as original unless WithDefaultOriginal(false) is given.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		heuristics:      DefaultHeuristics(),
		defaultOriginal: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify implements media.Classifier
func (c *Classifier) Classify(meta media.VideoMetadata) media.ClassificationResult {
	for _, h := range c.heuristics {
		if h.Match(meta) {
			return media.ClassificationResult{OriginalSound: true, MatchedBy: h.Name, Metadata: meta}
		}
	}
	return media.ClassificationResult{OriginalSound: c.defaultOriginal, MatchedBy: HeuristicDefault, Metadata: meta}
}

// Heuristics returns the names of the configured chain, in order
func (c *Classifier) Heuristics() []string {
	names := make([]string, 0, len(c.heuristics))
	for _, h := range c.heuristics {
		names = append(names, h.Name)
	}
	return names
}

// DefaultHeuristics returns the ordered chain used in production
func DefaultHeuristics() []Heuristic {
	return []Heuristic{
		{Name: HeuristicTitleOrDescription, Match: TitleOrDescriptionMentionsOriginal},
		{Name: HeuristicUploaderMatchesID, Match: UploaderMatchesID},
		{Name: HeuristicTagMentionsSound, Match: TagMentionsSound},
		{Name: HeuristicShortClip, Match: IsShortClip},
		{Name: HeuristicFormatNote, Match: FormatNoteMentionsOriginal},
	}
}

// TitleOrDescriptionMentionsOriginal matches "original sound" in the title or description
func TitleOrDescriptionMentionsOriginal(meta media.VideoMetadata) bool {
	return containsFold(meta.Title, "original sound") || containsFold(meta.Description, "original sound")
}

// UploaderMatchesID matches when the display name equals the handle
func UploaderMatchesID(meta media.VideoMetadata) bool {
	if meta.Uploader == "" || meta.UploaderID == "" {
		return false
	}
	return strings.EqualFold(meta.Uploader, meta.UploaderID)
}

// TagMentionsSound matches any tag containing "original" or "sound"
func TagMentionsSound(meta media.VideoMetadata) bool {
	for _, tag := range meta.Tags {
		if containsFold(tag, "original") || containsFold(tag, "sound") {
			return true
		}
	}
	return false
}

// IsShortClip matches clips with a known duration under ShortClipSeconds
func IsShortClip(meta media.VideoMetadata) bool {
	return meta.HasDuration() && *meta.Duration > 0 && *meta.Duration < ShortClipSeconds
}

// FormatNoteMentionsOriginal matches a format annotation containing "original"
func FormatNoteMentionsOriginal(meta media.VideoMetadata) bool {
	return containsFold(meta.FormatNote, "original")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

var _ media.Classifier = (*Classifier)(nil)
