package detection

import (
	"testing"

	"tiksound/domain/media"
)

func seconds(v float64) *float64 {
	return &v
}

func TestHeuristics(t *testing.T) {
	tests := []struct {
		name  string
		match func(media.VideoMetadata) bool
		meta  media.VideoMetadata
		want  bool
	}{
		{"title mentions original sound", TitleOrDescriptionMentionsOriginal, media.VideoMetadata{Title: "My ORIGINAL Sound remix"}, true},
		{"description mentions original sound", TitleOrDescriptionMentionsOriginal, media.VideoMetadata{Description: "original sound - me"}, true},
		{"words apart do not match", TitleOrDescriptionMentionsOriginal, media.VideoMetadata{Title: "original song sound"}, false},
		{"uploader equals id ignoring case", UploaderMatchesID, media.VideoMetadata{Uploader: "DanceCat", UploaderID: "dancecat"}, true},
		{"uploader differs from id", UploaderMatchesID, media.VideoMetadata{Uploader: "Dance Cat", UploaderID: "dancecat"}, false},
		{"both empty is not a match", UploaderMatchesID, media.VideoMetadata{}, false},
		{"one empty is not a match", UploaderMatchesID, media.VideoMetadata{Uploader: "", UploaderID: "x"}, false},
		{"tag contains original", TagMentionsSound, media.VideoMetadata{Tags: []string{"fyp", "#OriginalContent"}}, true},
		{"tag contains sound", TagMentionsSound, media.VideoMetadata{Tags: []string{"soundcheck"}}, true},
		{"unrelated tags", TagMentionsSound, media.VideoMetadata{Tags: []string{"fyp", "dance"}}, false},
		{"no tags", TagMentionsSound, media.VideoMetadata{}, false},
		{"short clip", IsShortClip, media.VideoMetadata{Duration: seconds(9.99)}, true},
		{"exactly ten seconds", IsShortClip, media.VideoMetadata{Duration: seconds(10)}, false},
		{"long clip", IsShortClip, media.VideoMetadata{Duration: seconds(42)}, false},
		{"zero duration", IsShortClip, media.VideoMetadata{Duration: seconds(0)}, false},
		{"missing duration", IsShortClip, media.VideoMetadata{}, false},
		{"format note mentions original", FormatNoteMentionsOriginal, media.VideoMetadata{FormatNote: "Original (watermarked)"}, true},
		{"format note without original", FormatNoteMentionsOriginal, media.VideoMetadata{FormatNote: "h264_720p"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.match(tt.meta); got != tt.want {
				t.Errorf("got %v, want %v for %+v", got, tt.want, tt.meta)
			}
		})
	}
}

func TestClassifier(t *testing.T) {
	t.Run("heuristics run in documented order", func(t *testing.T) {
		want := []string{
			HeuristicTitleOrDescription,
			HeuristicUploaderMatchesID,
			HeuristicTagMentionsSound,
			HeuristicShortClip,
			HeuristicFormatNote,
		}
		got := NewClassifier().Heuristics()
		if len(got) != len(want) {
			t.Fatalf("expected %d heuristics, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("heuristic %d = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("first match wins", func(t *testing.T) {
		meta := media.VideoMetadata{
			Title:      "original sound - someone",
			Uploader:   "a",
			UploaderID: "a",
			Duration:   seconds(3),
		}
		result := NewClassifier().Classify(meta)
		if !result.OriginalSound {
			t.Error("expected original sound")
		}
		if result.MatchedBy != HeuristicTitleOrDescription {
			t.Errorf("expected %s, got %s", HeuristicTitleOrDescription, result.MatchedBy)
		}
		if result.Metadata.Title != meta.Title {
			t.Errorf("expected metadata to be carried through")
		}
	})

	t.Run("later heuristic decides when earlier ones miss", func(t *testing.T) {
		meta := media.VideoMetadata{Title: "dance", Duration: seconds(5)}
		result := NewClassifier().Classify(meta)
		if result.MatchedBy != HeuristicShortClip {
			t.Errorf("expected %s, got %s", HeuristicShortClip, result.MatchedBy)
		}
	})

	t.Run("no match defaults to original", func(t *testing.T) {
		meta := media.VideoMetadata{Title: "dance", Uploader: "X", UploaderID: "y", Duration: seconds(30)}
		result := NewClassifier().Classify(meta)
		if !result.OriginalSound {
			t.Error("expected default to classify as original")
		}
		if result.MatchedBy != HeuristicDefault {
			t.Errorf("expected %s, got %s", HeuristicDefault, result.MatchedBy)
		}
	})

	t.Run("default can be flipped", func(t *testing.T) {
		meta := media.VideoMetadata{Title: "dance", Duration: seconds(30)}
		result := NewClassifier(WithDefaultOriginal(false)).Classify(meta)
		if result.OriginalSound {
			t.Error("expected not original when default is false")
		}
	})

	t.Run("custom chain replaces defaults", func(t *testing.T) {
		never := Heuristic{Name: "never", Match: func(media.VideoMetadata) bool { return false }}
		c := NewClassifier(WithHeuristics(never), WithDefaultOriginal(false))
		result := c.Classify(media.VideoMetadata{Title: "original sound"})
		if result.OriginalSound {
			t.Error("expected custom chain to ignore default heuristics")
		}
	})
}
