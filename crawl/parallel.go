package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/wallaby/models"
	"golang.org/x/time/rate"
)

const (
	defaultMaxRetry = 5
	defaultWorkers  = 1
)

// BatchConfig controls one ParallelCrawl run.
type BatchConfig struct {
	// LogDir receives one <taskID>.log file per task.
	LogDir string

	// Headless is passed through to every session the batch creates.
	Headless bool

	// Verbose mirrors per-task log entries to stderr.
	Verbose bool

	// MaxRetry is the attempt budget per task. Values below 1 fall back
	// to 5.
	MaxRetry int

	// Workers bounds how many tasks run concurrently. Values below 1
	// fall back to 1.
	Workers int

	// LaunchesPerSecond throttles browser launches across all workers.
	// Zero disables throttling.
	LaunchesPerSecond float64

	// LaunchBurst is the burst size of the launch throttle. Values below
	// 1 fall back to 1.
	LaunchBurst int

	// OnTaskDone, if set, is invoked from worker goroutines as each task
	// reaches a terminal state. It must be safe for concurrent use.
	OnTaskDone func(models.TaskResult)
}

func (cfg BatchConfig) withDefaults() BatchConfig {
	if cfg.MaxRetry < 1 {
		cfg.MaxRetry = defaultMaxRetry
	}
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkers
	}
	if cfg.LaunchBurst < 1 {
		cfg.LaunchBurst = 1
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	return cfg
}

// ParallelCrawl runs every argument set in argsList through c with bounded
// concurrency and per-task retry.
//
// Every task is validated before any browser is launched; one invalid task
// fails the whole batch up front. After that point task failures never
// propagate as errors: a task that exhausts its retries is recorded as
// models.TaskExhausted in the summary, and the batch carries on.
func ParallelCrawl(ctx context.Context, c Crawler, argsList []models.Args, cfg BatchConfig) (*models.BatchSummary, error) {
	if len(argsList) == 0 {
		return nil, models.NewCrawlError(models.ErrCodeValidation, "no tasks to crawl", nil)
	}
	cfg = cfg.withDefaults()

	// 1. Validate the whole batch before spending a single launch.
	tasks := make([]models.Task, len(argsList))
	for i, args := range argsList {
		if err := ValidateArgs(c, args); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		id := c.TaskID(args)
		tasks[i] = models.Task{
			ID:       id,
			Args:     args,
			LogPath:  filepath.Join(cfg.LogDir, id+".log"),
			MaxRetry: cfg.MaxRetry,
			Verbose:  cfg.Verbose,
			Headless: cfg.Headless,
		}
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	runID := uuid.NewString()[:8]
	started := time.Now()
	slog.Info("starting crawl batch",
		"run", runID, "crawler", c.Name(),
		"tasks", len(tasks), "workers", cfg.Workers, "maxRetry", cfg.MaxRetry)

	var limiter *rate.Limiter
	if cfg.LaunchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LaunchesPerSecond), cfg.LaunchBurst)
	}

	// 2. Fixed worker pool draining a task channel. Results are written by
	// index so the summary preserves input order.
	type queued struct {
		idx  int
		task models.Task
	}
	queue := make(chan queued)
	results := make([]models.TaskResult, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range queue {
				res := runTask(ctx, c, q.task, limiter)
				results[q.idx] = res
				if cfg.OnTaskDone != nil {
					cfg.OnTaskDone(res)
				}
			}
		}()
	}

	for i, t := range tasks {
		queue <- queued{idx: i, task: t}
	}
	close(queue)
	wg.Wait()

	// 3. Summarize. Partial failure is a result, not an error.
	summary := &models.BatchSummary{
		RunID:    runID,
		Total:    len(tasks),
		Duration: time.Since(started),
		Results:  results,
	}
	for _, r := range results {
		if r.Status == models.TaskFinished {
			summary.Finished++
		} else {
			summary.Failed++
		}
	}
	slog.Info("crawl batch done",
		"run", runID, "finished", summary.Finished, "failed", summary.Failed,
		"duration", summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// runTask drives one task to a terminal state: finished on the first
// successful attempt, exhausted after MaxRetry failures.
func runTask(ctx context.Context, c Crawler, t models.Task, limiter *rate.Limiter) models.TaskResult {
	started := time.Now()
	res := models.TaskResult{ID: t.ID, LogPath: t.LogPath}

	logger, closeLog, err := newTaskLogger(t.LogPath, t.Verbose)
	if err != nil {
		slog.Error("failed to open task log, logging to default handler",
			"task", t.ID, "error", err)
		logger = slog.Default().With("task", t.ID)
		closeLog = func() error { return nil }
	}
	defer closeLog()

	logger.Info("task started", "task", t.ID, "args", fmt.Sprintf("%v", t.Args))

	for attempt := 1; attempt <= t.MaxRetry; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				logger.Error("launch throttle interrupted", "error", err)
				break
			}
		}

		err := runAttempt(ctx, c, t, logger)
		res.Attempts = attempt
		if err == nil {
			res.Status = models.TaskFinished
			res.Duration = time.Since(started)
			logger.Info("task finished", "attempts", attempt,
				"duration", res.Duration.Round(time.Millisecond))
			return res
		}

		logger.Error("attempt failed", "attempt", attempt, "maxRetry", t.MaxRetry, "error", err)
		if attempt < t.MaxRetry {
			logger.Warn("retrying with a fresh session", "nextAttempt", attempt+1)
		}

		if ctx.Err() != nil {
			break
		}
	}

	res.Status = models.TaskExhausted
	res.Duration = time.Since(started)
	logger.Error("task gave up", "attempts", res.Attempts,
		"duration", res.Duration.Round(time.Millisecond))
	return res
}

// runAttempt runs one attempt on a fresh session. The session is always
// stopped, even when the crawl body panics: the teardown defer is registered
// after the recover defer, so it runs first during unwinding.
func runAttempt(ctx context.Context, c Crawler, t models.Task, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("crawl body panicked", "panic", r, "stack", string(debug.Stack()))
			err = models.NewCrawlError(models.ErrCodeTask, fmt.Sprintf("crawl panicked: %v", r), nil)
		}
	}()

	sess, err := c.NewSession(t.Headless, logger)
	if err != nil {
		return models.NewCrawlError(models.ErrCodeBrowserCrash, "failed to create session", err)
	}
	defer func() {
		if sess.IsRunning() {
			if stopErr := sess.Stop(); stopErr != nil {
				logger.Warn("failed to stop session", "error", stopErr)
			}
		}
	}()

	if err := sess.Start(ctx); err != nil {
		return err
	}
	return c.Crawl(ctx, sess, t.Args, logger)
}
