package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-custody-go/internal/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeExecuteDonations = "donation:execute"

	queueName       = "donations"
	executeTimeout  = 10 * time.Minute
	defaultSchedule = "@every 1m"
)

type Executor interface {
	ExecutePending(ctx context.Context) (*models.DonationReport, error)
}

// HandleExecuteDonations runs one donation batch per task. Overlapping runs are safe since each
// payment is claimed before it is spent.
func HandleExecuteDonations(exec Executor) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		report, err := exec.ExecutePending(ctx)
		if err != nil {
			return fmt.Errorf("donation batch failed: %w", err)
		}

		zap.L().Info("Donation batch finished",
			zap.String("task_type", t.Type()),
			zap.Int("executed", report.ExecutedCount),
			zap.Int("failed", report.FailedCount),
			zap.Int("skipped", report.SkippedCount),
			zap.Duration("duration", time.Since(start)))
		return nil
	}
}

func NewServeMux(exec Executor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeExecuteDonations, HandleExecuteDonations(exec))
	return mux
}

// Runner owns the asynq scheduler that enqueues donation batches and the server that runs them
type Runner struct {
	cfg       models.SchedulerConfig
	mux       *asynq.ServeMux
	server    *asynq.Server
	scheduler *asynq.Scheduler
}

func NewRunner(cfg models.SchedulerConfig, exec Executor) (*Runner, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if exec == nil {
		return nil, errors.New("executor cannot be nil")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	redis := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{queueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			zap.L().Error("Scheduled task failed", zap.String("task_type", task.Type()), zap.Error(err))
		}),
	})

	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				zap.L().Warn("Failed to enqueue scheduled task", zap.Error(err))
			}
		},
	})

	return &Runner{
		cfg:       cfg,
		mux:       NewServeMux(exec),
		server:    server,
		scheduler: scheduler,
	}, nil
}

func (r *Runner) Start() error {
	task := asynq.NewTask(TypeExecuteDonations, nil)
	entryId, err := r.scheduler.Register(r.cfg.Schedule, task,
		asynq.Queue(queueName),
		asynq.MaxRetry(0),
		asynq.Timeout(executeTimeout))
	if err != nil {
		return fmt.Errorf("failed to register donation schedule %q: %w", r.cfg.Schedule, err)
	}

	if err := r.server.Start(r.mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}
	if err := r.scheduler.Start(); err != nil {
		r.server.Shutdown()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	zap.L().Info("Donation scheduler started",
		zap.String("schedule", r.cfg.Schedule),
		zap.String("entry_id", entryId),
		zap.String("redis_addr", r.cfg.RedisAddr))
	return nil
}

func (r *Runner) Stop() {
	zap.L().Info("Stopping donation scheduler")
	r.scheduler.Shutdown()
	r.server.Shutdown()
}
