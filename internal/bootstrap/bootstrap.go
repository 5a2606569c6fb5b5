// Package bootstrap provides dependency initialization for the alignment
// service.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/avalign/avalign-api/internal/config"
	"github.com/avalign/avalign-api/internal/engine"
	"github.com/avalign/avalign-api/internal/job"
	"github.com/avalign/avalign-api/internal/pipeline"
	"github.com/avalign/avalign-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	AlignService *job.AlignService
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	eng := engine.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)

	aligner := pipeline.NewAligner(eng, logger,
		pipeline.WithTempRoot(cfg.TempDir),
		pipeline.WithSilenceDetection(cfg.SilenceThreshDB, cfg.MinSilenceSec),
		pipeline.WithAlignOptions(cfg.AlignOptions()),
		pipeline.WithMaxConcurrentSegments(cfg.MaxConcurrentSegments),
		pipeline.WithRunTimeout(cfg.RunTimeout()),
	)

	repo := job.NewMemoryRepository()
	svc := job.NewAlignService(repo, aligner, store, logger)

	return &Dependencies{
		AlignService: svc,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
