// Package scheduler provides the durable, delay-capable job queues that
// decouple enqueue time from execution time. Jobs execute at least once;
// handlers must be idempotent or tolerate duplicate execution.
package scheduler

import (
	"context"
	"encoding/json"
	"time"
)

// Scheduler is the enqueue capability used by the services. Any durable,
// delay-capable, retrying queue implementation satisfies it.
type Scheduler interface {
	// Enqueue schedules a job on the named queue to become ready after
	// delay. A non-empty dedupKey collapses duplicates: at most one job per
	// key is scheduled at a time, and a later enqueue only takes effect when
	// it is due sooner than the one already parked.
	Enqueue(ctx context.Context, queue string, payload any, delay time.Duration, dedupKey string) error
}

// Job is a single queue entry as delivered to a handler.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"-"`
}

// AttemptsRemaining reports how many retries are left after the current
// execution. Handlers use it to decide between returning an error (retry)
// and recording a terminal failure.
func (j *Job) AttemptsRemaining() int {
	return j.MaxAttempts - j.Attempt - 1
}

// Handler processes one job. Returning an error re-enqueues the job with
// the queue's backoff policy until its attempts are exhausted.
type Handler func(ctx context.Context, job *Job) error

// BackoffFunc maps the number of completed attempts to the next retry delay.
type BackoffFunc func(attempt int) time.Duration

// FixedBackoff retries at a constant interval.
func FixedBackoff(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff doubles the delay on every attempt, starting at base.
func ExponentialBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	}
}

// QueueConfig declares one logical queue and its execution policy.
type QueueConfig struct {
	Name        string
	MaxAttempts int
	Backoff     BackoffFunc
	Concurrency int
}
