package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const pollInterval = time.Second

// RedisScheduler implements the durable queues on Redis sorted sets: the
// member is the job ID, the score the ready-at time, and the envelope lives
// in a per-queue hash. A worker owns a job when its ZRem of the member
// returns 1, so concurrent pollers never double-claim.
type RedisScheduler struct {
	client *redis.Client
	logger *slog.Logger

	mu       sync.Mutex
	queues   []QueueConfig
	handlers map[string]Handler
}

// NewRedisScheduler connects to Redis and returns the scheduler
func NewRedisScheduler(url string, logger *slog.Logger) (*RedisScheduler, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis", slog.String("addr", opts.Addr))

	return &RedisScheduler{
		client:   client,
		logger:   logger,
		handlers: make(map[string]Handler),
	}, nil
}

func dueKey(queue string) string  { return "jobs:" + queue + ":due" }
func dataKey(queue string) string { return "jobs:" + queue + ":data" }

// Enqueue schedules a job on the named queue
func (s *RedisScheduler) Enqueue(ctx context.Context, queue string, payload any, delay time.Duration, dedupKey string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := &Job{
		ID:      dedupKey,
		Queue:   queue,
		Payload: data,
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	envelope, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job envelope: %w", err)
	}

	// Envelope before membership: a poller must never claim a member whose
	// envelope is not readable yet.
	if err := s.client.HSet(ctx, dataKey(queue), job.ID, envelope).Err(); err != nil {
		return fmt.Errorf("failed to store job envelope: %w", err)
	}

	readyAt := time.Now().Add(delay)
	member := redis.Z{Score: float64(readyAt.UnixMilli()), Member: job.ID}

	if dedupKey != "" {
		// ZADD LT keeps one scheduled job per dedup key: an absent member is
		// added, an existing one only moves to an earlier ready-at. An
		// immediate start/resume batch therefore replaces a parked next-day
		// continuation instead of being swallowed by it.
		if err := s.client.ZAddLT(ctx, dueKey(queue), member).Err(); err != nil {
			return fmt.Errorf("failed to schedule job: %w", err)
		}
	} else if err := s.client.ZAdd(ctx, dueKey(queue), member).Err(); err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	s.logger.Debug("job enqueued",
		slog.String("queue", queue),
		slog.String("job_id", job.ID),
		slog.Duration("delay", delay),
	)

	return nil
}

// Register binds a handler to a queue. Must be called before Run.
func (s *RedisScheduler) Register(cfg QueueConfig, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queues = append(s.queues, cfg)
	s.handlers[cfg.Name] = handler
}

// Run polls all registered queues until the context is cancelled, then
// waits for in-flight jobs to drain.
func (s *RedisScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	queues := make([]QueueConfig, len(s.queues))
	copy(queues, s.queues)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, cfg := range queues {
		wg.Add(1)
		go func(cfg QueueConfig) {
			defer wg.Done()
			s.consume(ctx, cfg)
		}(cfg)
	}

	wg.Wait()
	return ctx.Err()
}

// consume runs the poll loop for one queue
func (s *RedisScheduler) consume(ctx context.Context, cfg QueueConfig) {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	s.logger.Info("starting queue consumer",
		slog.String("queue", cfg.Name),
		slog.Int("concurrency", concurrency),
		slog.Int("max_attempts", cfg.MaxAttempts),
	)

	semaphore := make(chan struct{}, concurrency)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("consumer stopping, draining in-flight jobs",
				slog.String("queue", cfg.Name),
			)
			for i := 0; i < concurrency; i++ {
				semaphore <- struct{}{}
			}
			s.logger.Info("consumer drained", slog.String("queue", cfg.Name))
			return

		case <-ticker.C:
			s.pollOnce(ctx, cfg, semaphore, concurrency)
		}
	}
}

// pollOnce claims and dispatches all currently due jobs, up to the
// concurrency ceiling per tick.
func (s *RedisScheduler) pollOnce(ctx context.Context, cfg QueueConfig, semaphore chan struct{}, concurrency int) {
	now := time.Now().UnixMilli()
	ids, err := s.client.ZRangeByScore(ctx, dueKey(cfg.Name), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now),
		Count: int64(concurrency),
	}).Result()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("failed to poll queue",
			slog.String("queue", cfg.Name),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, id := range ids {
		// ZRem is the claim: exactly one poller sees 1 for a member.
		removed, err := s.client.ZRem(ctx, dueKey(cfg.Name), id).Result()
		if err != nil || removed == 0 {
			continue
		}

		envelope, err := s.client.HGet(ctx, dataKey(cfg.Name), id).Result()
		if err == redis.Nil {
			s.logger.Warn("claimed job has no envelope, dropping",
				slog.String("queue", cfg.Name),
				slog.String("job_id", id),
			)
			continue
		}
		if err != nil {
			s.logger.Error("failed to load job envelope",
				slog.String("queue", cfg.Name),
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.client.HDel(ctx, dataKey(cfg.Name), id)

		var job Job
		if err := json.Unmarshal([]byte(envelope), &job); err != nil {
			s.logger.Error("failed to unmarshal job envelope",
				slog.String("queue", cfg.Name),
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		job.MaxAttempts = cfg.MaxAttempts

		semaphore <- struct{}{}
		go func(job Job) {
			defer func() { <-semaphore }()
			s.execute(ctx, cfg, &job)
		}(job)
	}
}

// execute runs the handler and applies the retry policy on failure
func (s *RedisScheduler) execute(ctx context.Context, cfg QueueConfig, job *Job) {
	s.mu.Lock()
	handler := s.handlers[cfg.Name]
	s.mu.Unlock()

	err := handler(ctx, job)
	if err == nil {
		return
	}

	job.Attempt++
	if job.Attempt >= cfg.MaxAttempts {
		s.logger.Error("job dropped after max attempts",
			slog.String("queue", cfg.Name),
			slog.String("job_id", job.ID),
			slog.Int("attempts", job.Attempt),
			slog.String("error", err.Error()),
		)
		return
	}

	delay := cfg.Backoff(job.Attempt)
	s.logger.Warn("job failed, retrying",
		slog.String("queue", cfg.Name),
		slog.String("job_id", job.ID),
		slog.Int("attempt", job.Attempt),
		slog.Duration("retry_in", delay),
		slog.String("error", err.Error()),
	)

	if reErr := s.requeue(ctx, cfg.Name, job, delay); reErr != nil {
		s.logger.Error("failed to requeue job",
			slog.String("queue", cfg.Name),
			slog.String("job_id", job.ID),
			slog.String("error", reErr.Error()),
		)
	}
}

// requeue puts a failed job back with its attempt count preserved
func (s *RedisScheduler) requeue(ctx context.Context, queue string, job *Job, delay time.Duration) error {
	envelope, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job envelope: %w", err)
	}

	if err := s.client.HSet(ctx, dataKey(queue), job.ID, envelope).Err(); err != nil {
		return fmt.Errorf("failed to store job envelope: %w", err)
	}

	readyAt := time.Now().Add(delay)
	member := redis.Z{Score: float64(readyAt.UnixMilli()), Member: job.ID}
	if err := s.client.ZAdd(ctx, dueKey(queue), member).Err(); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	return nil
}

// Health checks if Redis is reachable
func (s *RedisScheduler) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Client exposes the underlying Redis client so the cooldown store can
// share the connection.
func (s *RedisScheduler) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisScheduler) Close() error {
	s.logger.Info("closing Redis connection")
	return s.client.Close()
}
