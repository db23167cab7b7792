package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScratchKind tags what a scratch file holds
type ScratchKind string

const (
	// KindVideo marks an intermediate downloaded video
	KindVideo ScratchKind = "video"

	// KindAudio marks a final extracted MP3
	KindAudio ScratchKind = "audio"
)

// AudioExtension is the extension of every audio artifact
const AudioExtension = ".mp3"

// ScratchFile is a transient file in the scratch directory
type ScratchFile struct {
	Kind ScratchKind
	Name string // base name including extension
	Path string // full path inside the scratch directory
}

// NewScratchName returns a base name (without extension) of the form
// <kind>_<unix-millis>_<random>. The random suffix keeps names unique when
// several requests land in the same millisecond.
func NewScratchName(kind ScratchKind, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", kind, now.UnixMilli(), suffix)
}

// KindOf reports the kind encoded in a scratch file name
func KindOf(name string) (ScratchKind, bool) {
	base := filepath.Base(name)
	switch {
	case strings.HasPrefix(base, string(KindVideo)+"_"):
		return KindVideo, true
	case strings.HasPrefix(base, string(KindAudio)+"_"):
		return KindAudio, true
	default:
		return "", false
	}
}

// IsAudioArtifactName reports whether name is a plain audio scratch file name
// that is safe to serve (no path components, audio kind, .mp3 extension).
func IsAudioArtifactName(name string) bool {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return false
	}
	kind, ok := KindOf(name)
	return ok && kind == KindAudio && strings.EqualFold(filepath.Ext(name), AudioExtension)
}
