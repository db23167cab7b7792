// Package retention decides when scratch files have outlived their usefulness.
package retention

import (
	"errors"
	"time"
)

// DefaultWindow is how long a scratch file is kept after its last modification
const DefaultWindow = 10 * time.Minute

// ErrInvalidWindow is returned for a non-positive retention window
var ErrInvalidWindow = errors.New("retention window must be positive")

// Policy expires files whose modification time is strictly older than now minus Window
type Policy struct {
	Window time.Duration
}

// NewPolicy creates a policy, rejecting non-positive windows
func NewPolicy(window time.Duration) (Policy, error) {
	if window <= 0 {
		return Policy{}, ErrInvalidWindow
	}
	return Policy{Window: window}, nil
}

// Cutoff returns the instant before which files are expired
func (p Policy) Cutoff(now time.Time) time.Time {
	return now.Add(-p.Window)
}

// Expired reports whether a file last modified at modTime should be deleted at now
func (p Policy) Expired(modTime, now time.Time) bool {
	return modTime.Before(p.Cutoff(now))
}
