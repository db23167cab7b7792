package retention

import "time"

// SweepResult contains information about files deleted during a sweep
type SweepResult struct {
	DeletedFiles []DeletedFile
	FreedBytes   int64
	Failed       int
}

// DeletedFile represents a file that was deleted
type DeletedFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Add records a deleted file
func (r *SweepResult) Add(f DeletedFile) {
	r.DeletedFiles = append(r.DeletedFiles, f)
	r.FreedBytes += f.Size
}

// Count returns how many files were deleted
func (r *SweepResult) Count() int {
	return len(r.DeletedFiles)
}
