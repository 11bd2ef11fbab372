package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrQueueFull = errors.New("task queue is full")

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultQueueSize   = 300
	defaultTaskTimeout = 5 * time.Minute
)

type Scheduler struct {
	feeds         FeedLister
	syncer        Syncer
	interval      time.Duration
	workerCount   int
	taskTimeout   time.Duration
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	taskQueue     chan TaskInterface
}

func NewScheduler(feeds FeedLister, syncer Syncer, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount < 1 {
		workerCount = 1
	}

	return &Scheduler{
		feeds:         feeds,
		syncer:        syncer,
		interval:      interval,
		workerCount:   workerCount,
		taskTimeout:   defaultTaskTimeout,
		retryDelay:    time.Second,
		maxRetryDelay: 30 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, defaultQueueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and pending retries and waits for the workers.
// Queued tasks that did not start are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Scheduler) enqueueTasks() {
	feeds, err := s.feeds.ListActiveFeeds(s.ctx)
	if err != nil {
		slog.Error("Failed to list active feeds", "error", err)
		return
	}
	if len(feeds) == 0 {
		slog.Debug("No active feeds found")
		return
	}

	slog.Debug("Scheduling feed sync", "count", len(feeds))

	for _, feed := range feeds {
		if err := s.EnqueueTask(NewSyncFeedTask(feed, s.syncer)); err != nil {
			slog.Warn("Failed to enqueue SyncFeedTask", "feed_id", feed.ID, "url", feed.URL, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "feed_id", task.GetFeedID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.backoff(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed_id", task.GetFeedID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// backoff doubles the base delay per attempt, capped at maxRetryDelay.
func (s *Scheduler) backoff(attempt int) time.Duration {
	delay := s.retryDelay
	for i := 1; i < attempt && delay < s.maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, s.maxRetryDelay)
}
