// Package server provides the HTTP surface for the alignment service. It
// includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateJobRequest is the HTTP request body for creating a new alignment job.
type CreateJobRequest struct {
	// VideoBase64 is the base64-encoded source video track.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// AudioBase64 is the base64-encoded source audio track.
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
	// Strategy selects the padding strategy; empty uses the server default.
	Strategy string `json:"strategy,omitempty" validate:"omitempty,oneof=simple chunked"`
	// PushToS3 indicates whether to upload the muxed output to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// PlanResponse summarizes the alignment decision a completed job executed.
type PlanResponse struct {
	// Mode is the chosen alignment action.
	Mode string `json:"mode"`
	// Strategy is the padding strategy used.
	Strategy string `json:"strategy"`
	// LoopCount is the number of video plays (loop_video only).
	LoopCount int `json:"loop_count,omitempty"`
	// UncompensatedSec is the deficit the silence cap left unfilled.
	UncompensatedSec float64 `json:"uncompensated_sec,omitempty"`
	// VideoDurationSec is the probed duration of the input video.
	VideoDurationSec float64 `json:"video_duration_sec"`
	// AudioDurationSec is the probed duration of the input audio.
	AudioDurationSec float64 `json:"audio_duration_sec"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// Plan is present once the alignment decision has been made.
	Plan *PlanResponse `json:"plan,omitempty"`
	// OutputBase64 is the muxed output (if push_to_s3=false and completed).
	OutputBase64 string `json:"output_base64,omitempty"`
	// OutputURL is the S3 URL of the output (if push_to_s3=true and completed).
	OutputURL string `json:"output_url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
