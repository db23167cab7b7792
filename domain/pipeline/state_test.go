package pipeline

import (
	"errors"
	"testing"

	"tiksound/domain/media"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
		want bool
	}{
		{StateIdle, StateValidating, true},
		{StateValidating, StateRejected, true},
		{StateValidating, StateProbing, true},
		{StateValidating, StateFetching, false},
		{StateProbing, StateFiltered, true},
		{StateProbing, StateFetching, true},
		{StateProbing, StateExtracting, false},
		{StateFetching, StateExtracting, true},
		{StateExtracting, StateCleaningUp, true},
		{StateCleaningUp, StateDone, true},
		{StateFetching, StateFailed, true},
		{StateIdle, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateFiltered, StateFetching, false},
		{StateFailed, StateIdle, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestResultState(t *testing.T) {
	c := media.ClassificationResult{OriginalSound: true, Metadata: media.VideoMetadata{Title: "clip"}}
	artifact := media.ScratchFile{Kind: media.KindAudio, Name: "audio_1_x.mp3"}

	tests := []struct {
		name   string
		result Result
		state  State
		title  string
	}{
		{"rejected", Rejected("j", errors.New("bad")), StateRejected, ""},
		{"filtered", Filtered("j", c), StateFiltered, "clip"},
		{"failed", Failed("j", StageFetch, errors.New("boom")), StateFailed, ""},
		{"succeeded", Succeeded("j", c, artifact), StateDone, "clip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.State(); got != tt.state {
				t.Errorf("State() = %s, want %s", got, tt.state)
			}
			if !tt.result.State().Terminal() {
				t.Errorf("expected %s to be terminal", tt.result.State())
			}
			if got := tt.result.Title(); got != tt.title {
				t.Errorf("Title() = %q, want %q", got, tt.title)
			}
		})
	}

	if r := Succeeded("j", c, artifact); r.Artifact == nil || r.Artifact.Name != artifact.Name {
		t.Errorf("expected artifact to be carried, got %+v", r.Artifact)
	}
}
