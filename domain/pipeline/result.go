package pipeline

import (
	"tiksound/domain/media"
)

// Outcome tags how a pipeline run ended
type Outcome string

const (
	// OutcomeRejected means the input failed validation before any side effect
	OutcomeRejected Outcome = "rejected"

	// OutcomeFiltered means the clip was classified as not original sound
	OutcomeFiltered Outcome = "filtered"

	// OutcomeSucceeded means an audio artifact was produced
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed means a stage failed; no artifact is returned
	OutcomeFailed Outcome = "failed"
)

// Stage names the step that a failure is attributed to
type Stage string

const (
	StageValidate Stage = "validate"
	StageProbe    Stage = "probe"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
)

// Result is the tagged outcome of one pipeline run
type Result struct {
	Outcome Outcome
	JobID   string

	// Stage and Err are set for Rejected and Failed outcomes
	Stage Stage
	Err   error

	// Classification is set once probing succeeded
	Classification *media.ClassificationResult

	// Artifact is set only for Succeeded outcomes
	Artifact *media.ScratchFile
}

// Rejected builds a result for invalid input
func Rejected(jobID string, err error) Result {
	return Result{Outcome: OutcomeRejected, JobID: jobID, Stage: StageValidate, Err: err}
}

// Filtered builds a result for a clip that is not original sound
func Filtered(jobID string, c media.ClassificationResult) Result {
	return Result{Outcome: OutcomeFiltered, JobID: jobID, Classification: &c}
}

// Failed builds a result for a stage failure
func Failed(jobID string, stage Stage, err error) Result {
	return Result{Outcome: OutcomeFailed, JobID: jobID, Stage: stage, Err: err}
}

// Succeeded builds a result carrying the produced artifact
func Succeeded(jobID string, c media.ClassificationResult, artifact media.ScratchFile) Result {
	return Result{Outcome: OutcomeSucceeded, JobID: jobID, Classification: &c, Artifact: &artifact}
}

// Title returns the clip title when metadata is known
func (r Result) Title() string {
	if r.Classification == nil {
		return ""
	}
	return r.Classification.Metadata.Title
}

// State maps the outcome to its terminal state
func (r Result) State() State {
	switch r.Outcome {
	case OutcomeRejected:
		return StateRejected
	case OutcomeFiltered:
		return StateFiltered
	case OutcomeSucceeded:
		return StateDone
	default:
		return StateFailed
	}
}
