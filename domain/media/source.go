package media

import (
	"fmt"
	"net/url"
	"strings"
)

// recognizedHosts are the primary TikTok domain and its short-link subdomains
var recognizedHosts = map[string]bool{
	"tiktok.com":     true,
	"www.tiktok.com": true,
	"vm.tiktok.com":  true,
	"vt.tiktok.com":  true,
}

// SourceReference is a URL that has passed host validation
type SourceReference struct {
	url string
}

// ParseSourceReference validates raw and returns a SourceReference
func ParseSourceReference(raw string) (SourceReference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SourceReference{}, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if !IsRecognizedSource(raw) {
		return SourceReference{}, fmt.Errorf("%w: %q is not a TikTok URL", ErrInvalidInput, raw)
	}
	return SourceReference{url: raw}, nil
}

// IsRecognizedSource reports whether raw is an http(s) URL on a recognised host
func IsRecognizedSource(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return recognizedHosts[strings.ToLower(u.Hostname())]
}

// String returns the validated URL
func (s SourceReference) String() string {
	return s.url
}

// IsZero returns true if the reference was never validated
func (s SourceReference) IsZero() bool {
	return s.url == ""
}
