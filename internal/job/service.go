package job

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/avalign/avalign-api/internal/align"
	"github.com/avalign/avalign-api/internal/pipeline"
	"github.com/avalign/avalign-api/internal/storage"
)

// Runner executes one alignment run. Satisfied by *pipeline.Aligner.
type Runner interface {
	Run(ctx context.Context, videoPath, audioPath, outputPath string, strategy align.Strategy) (pipeline.Result, error)
}

// AlignInput contains the input parameters for an alignment run.
type AlignInput struct {
	// VideoBase64 is the base64-encoded source video track.
	VideoBase64 string
	// AudioBase64 is the base64-encoded source audio track.
	AudioBase64 string
	// Strategy selects the padding strategy. Empty means the configured
	// default.
	Strategy align.Strategy
	// PushToS3 indicates whether to upload the muxed output to S3.
	PushToS3 bool
}

// AlignService orchestrates alignment jobs: it materializes the uploaded
// tracks, runs the pipeline, optionally ships the result to S3, and keeps
// the job record current.
type AlignService struct {
	repo   Repository
	runner Runner
	store  storage.Storage
	logger *slog.Logger
}

// NewAlignService creates a new AlignService.
func NewAlignService(repo Repository, runner Runner, store storage.Storage, logger *slog.Logger) *AlignService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlignService{
		repo:   repo,
		runner: runner,
		store:  store,
		logger: logger,
	}
}

// CreateJob creates a new job and persists it in IN_QUEUE status.
func (s *AlignService) CreateJob(ctx context.Context, input AlignInput) (*Job, error) {
	j := New()
	if input.Strategy.IsValid() {
		j.Strategy = input.Strategy
	}
	j.PushToS3 = input.PushToS3

	s.logger.Info("creating alignment job",
		slog.String("job_id", j.ID),
		slog.String("strategy", string(j.Strategy)),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return j, nil
}

// GetJob retrieves a job by ID.
func (s *AlignService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Process creates a job and runs it to completion.
func (s *AlignService) Process(ctx context.Context, input AlignInput) (*Job, error) {
	j, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, j.ID, input)
}

// ProcessExistingJob runs the alignment pipeline for a previously created
// job. It is the entry point for background processing: any failure is
// recorded on the job and also returned.
func (s *AlignService) ProcessExistingJob(ctx context.Context, jobID string, input AlignInput) (*Job, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := j.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}

	if runErr := s.runJob(ctx, j, input); runErr != nil {
		s.failJob(ctx, j, runErr)
		return j, runErr
	}

	if err := j.Complete(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Info("alignment job completed",
		slog.String("job_id", j.ID),
		slog.String("mode", string(j.Plan.Mode)),
		slog.String("output", j.OutputPath),
	)

	return j, nil
}

// runJob does the actual work: decode inputs, run the pipeline, record the
// plan, and optionally upload the result.
func (s *AlignService) runJob(ctx context.Context, j *Job, input AlignInput) error {
	videoPath, audioPath, err := s.saveInputs(ctx, j, input)
	if err != nil {
		return err
	}
	defer func() {
		if cleanErr := s.store.CleanupTemp(context.WithoutCancel(ctx), []string{videoPath, audioPath}); cleanErr != nil {
			s.logger.Warn("input cleanup failed",
				slog.String("job_id", j.ID),
				slog.String("error", cleanErr.Error()),
			)
		}
	}()

	j.SetInputs(videoPath, audioPath)

	outputPath := filepath.Join(s.store.TempDir(), j.ID+"_output.mp4")
	result, err := s.runner.Run(ctx, videoPath, audioPath, outputPath, input.Strategy)
	if err != nil {
		return fmt.Errorf("alignment run: %w", err)
	}

	j.SetPlan(PlanSummary{
		Mode:             result.Plan.Mode,
		Strategy:         result.Plan.Strategy,
		LoopCount:        result.Plan.LoopCount,
		UncompensatedSec: result.Plan.UncompensatedSec,
		VideoDurationSec: result.VideoDurationSec,
		AudioDurationSec: result.AudioDurationSec,
	})

	outputURL := ""
	if j.PushToS3 {
		outputURL, err = s.uploadOutput(ctx, j.ID, result.OutputPath)
		if err != nil {
			return err
		}
	}

	j.SetOutput(result.OutputPath, outputURL)
	return nil
}

// saveInputs decodes the base64 tracks into temp files.
func (s *AlignService) saveInputs(ctx context.Context, j *Job, input AlignInput) (videoPath, audioPath string, err error) {
	videoData, err := base64.StdEncoding.DecodeString(input.VideoBase64)
	if err != nil {
		return "", "", fmt.Errorf("decode video: %w", err)
	}
	audioData, err := base64.StdEncoding.DecodeString(input.AudioBase64)
	if err != nil {
		return "", "", fmt.Errorf("decode audio: %w", err)
	}

	videoPath, err = s.store.SaveTemp(ctx, j.ID+"_video", bytes.NewReader(videoData))
	if err != nil {
		return "", "", fmt.Errorf("save video: %w", err)
	}
	audioPath, err = s.store.SaveTemp(ctx, j.ID+"_audio", bytes.NewReader(audioData))
	if err != nil {
		_ = s.store.CleanupTemp(ctx, []string{videoPath})
		return "", "", fmt.Errorf("save audio: %w", err)
	}

	return videoPath, audioPath, nil
}

// uploadOutput pushes the muxed file to S3 and returns its URL.
func (s *AlignService) uploadOutput(ctx context.Context, jobID, outputPath string) (string, error) {
	f, err := os.Open(outputPath) // #nosec G304 - path is produced by the pipeline
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = f.Close() }()

	url, err := s.store.UploadToS3(ctx, jobID+".mp4", f)
	if err != nil {
		return "", fmt.Errorf("upload output: %w", err)
	}
	return url, nil
}

// failJob records a failure on the job, mapping deadline expiry to the
// TIMED_OUT state.
func (s *AlignService) failJob(ctx context.Context, j *Job, runErr error) {
	s.logger.Error("alignment job failed",
		slog.String("job_id", j.ID),
		slog.String("error", runErr.Error()),
	)

	var transitionErr error
	if errors.Is(runErr, context.DeadlineExceeded) {
		transitionErr = j.Timeout()
	} else {
		transitionErr = j.Fail(runErr.Error())
	}
	if transitionErr != nil {
		s.logger.Error("job transition failed",
			slog.String("job_id", j.ID),
			slog.String("error", transitionErr.Error()),
		)
		return
	}

	if err := s.repo.Save(context.WithoutCancel(ctx), j); err != nil {
		s.logger.Error("failed to persist job failure",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}
