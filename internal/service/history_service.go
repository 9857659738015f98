package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-replan-api/internal/models"
	"github.com/noah-isme/study-replan-api/pkg/jobs"
)

// JobTypeReplanRunRecorded is the queue job carrying a finished run.
const JobTypeReplanRunRecorded = "replan.run.recorded"

type replanRunWriter interface {
	Create(ctx context.Context, run *models.ReplanRun) error
}

// RunHistoryConfig tunes the history worker pool.
type RunHistoryConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// RunHistoryService persists run records off the request path. Losing a
// record never affects the run it describes.
type RunHistoryService struct {
	repo    replanRunWriter
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRunHistoryService wires the writer to its queue.
func NewRunHistoryService(repo replanRunWriter, metrics *MetricsService, logger *zap.Logger, cfg RunHistoryConfig) *RunHistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RunHistoryService{repo: repo, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("replan-history", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the workers.
func (s *RunHistoryService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending records and stops the workers.
func (s *RunHistoryService) Stop() {
	s.queue.Stop()
}

// Record schedules run for persistence.
func (s *RunHistoryService) Record(run models.ReplanRun) {
	if s == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: JobTypeReplanRunRecorded, Payload: run})
	if err != nil {
		s.metrics.RecordHistoryWrite(false)
		s.logger.Warn("failed to enqueue replan run record", zap.String("run_id", run.ID), zap.Int64("plan_id", run.PlanID), zap.Error(err))
	}
}

func (s *RunHistoryService) handle(ctx context.Context, job jobs.Job) error {
	run, ok := job.Payload.(models.ReplanRun)
	if !ok {
		s.logger.Error("unexpected replan history payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	if err := s.repo.Create(ctx, &run); err != nil {
		s.metrics.RecordHistoryWrite(false)
		return err
	}
	s.metrics.RecordHistoryWrite(true)
	s.logger.Debug("replan run recorded", zap.String("run_id", run.ID), zap.Int64("plan_id", run.PlanID))
	return nil
}
