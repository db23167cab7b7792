package media

import "fmt"

// Default audio output settings
const (
	DefaultAudioBitrate    = "128k"
	DefaultAudioChannels   = 2
	DefaultAudioSampleRate = 44100
)

// AudioProfile describes the fixed MP3 target produced by the extractor
type AudioProfile struct {
	Bitrate    string
	Channels   int
	SampleRate int
}

// DefaultAudioProfile returns the 128 kbps stereo 44.1 kHz profile
func DefaultAudioProfile() AudioProfile {
	return AudioProfile{
		Bitrate:    DefaultAudioBitrate,
		Channels:   DefaultAudioChannels,
		SampleRate: DefaultAudioSampleRate,
	}
}

// WithDefaults fills unset fields from the default profile
func (p AudioProfile) WithDefaults() AudioProfile {
	d := DefaultAudioProfile()
	if p.Bitrate == "" {
		p.Bitrate = d.Bitrate
	}
	if p.Channels <= 0 {
		p.Channels = d.Channels
	}
	if p.SampleRate <= 0 {
		p.SampleRate = d.SampleRate
	}
	return p
}

// Validate checks the profile values are usable
func (p AudioProfile) Validate() error {
	if p.Bitrate == "" {
		return fmt.Errorf("audio bitrate is required")
	}
	if p.Channels < 1 || p.Channels > 8 {
		return fmt.Errorf("audio channels must be between 1 and 8, got %d", p.Channels)
	}
	if p.SampleRate < 8000 {
		return fmt.Errorf("audio sample rate too low: %d", p.SampleRate)
	}
	return nil
}
