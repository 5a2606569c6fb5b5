// Package job provides the Job aggregate for tracking alignment runs.
// It includes the Job entity with state machine transitions and the
// repository interface for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/avalign/avalign-api/internal/align"
	"github.com/avalign/avalign-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job was created and is waiting to run.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the alignment pipeline is executing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the run exceeded its configured time limit.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// PlanSummary captures the alignment decision a run executed, for reporting
// back to the caller.
type PlanSummary struct {
	// Mode is the chosen alignment action.
	Mode align.Mode
	// Strategy is the padding strategy used.
	Strategy align.Strategy
	// LoopCount is the number of video plays (loop_video only).
	LoopCount int
	// UncompensatedSec is the deficit the silence cap left unfilled.
	UncompensatedSec float64
	// VideoDurationSec is the probed duration of the input video.
	VideoDurationSec float64
	// AudioDurationSec is the probed duration of the input audio.
	AudioDurationSec float64
}

// Job represents one alignment run from input tracks to muxed output.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Strategy is the requested padding strategy.
	Strategy align.Strategy
	// Error contains any error message if the job failed.
	Error string
	// InputVideoPath is the path to the source video track.
	InputVideoPath string
	// InputAudioPath is the path to the source audio track.
	InputAudioPath string
	// OutputPath is the path to the final muxed file.
	OutputPath string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// OutputURL is the S3 URL if PushToS3 was true.
	OutputURL string
	// Plan summarizes the executed alignment decision.
	Plan PlanSummary
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE
// status. Useful for testing or when the ID is generated externally.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Strategy:  align.StrategyChunked,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetInputs records the materialized input track paths.
func (j *Job) SetInputs(videoPath, audioPath string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.InputVideoPath = videoPath
	j.InputAudioPath = audioPath
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output file path and optional S3 URL.
func (j *Job) SetOutput(outputPath, outputURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = outputPath
	j.OutputURL = outputURL
	j.UpdatedAt = time.Now()
}

// SetPlan records the executed alignment decision.
func (j *Job) SetPlan(plan PlanSummary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Plan = plan
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:             j.ID,
		Status:         j.Status,
		Strategy:       j.Strategy,
		Error:          j.Error,
		InputVideoPath: j.InputVideoPath,
		InputAudioPath: j.InputAudioPath,
		OutputPath:     j.OutputPath,
		PushToS3:       j.PushToS3,
		OutputURL:      j.OutputURL,
		Plan:           j.Plan,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}
