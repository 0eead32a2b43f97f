package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEmail = "jobs:email"

	JobEmail = "email"

	// MaxJobAttempts bounds how often a failing job is re-queued before it
	// lands in the DLQ.
	MaxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler processes one job payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// InlineDispatcher runs jobs on a goroutine of the calling process. It
// stands in for the Redis queue when Redis is not configured.
type InlineDispatcher struct {
	handlers map[string]Handler
}

func NewInlineDispatcher(handlers map[string]Handler) *InlineDispatcher {
	return &InlineDispatcher{handlers: handlers}
}

func (d *InlineDispatcher) EnqueueEmail(_ context.Context, payload EmailJobPayload) error {
	h, ok := d.handlers[JobEmail]
	if !ok {
		return fmt.Errorf("worker: no handler for %q", JobEmail)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		var jobErr error
		for attempt := 1; attempt <= MaxJobAttempts; attempt++ {
			if jobErr = h(ctx, data); jobErr == nil {
				return
			}
		}
		log.Error().Err(jobErr).Str("type", JobEmail).Msg("inline job failed")
	}()
	return nil
}

// StartWorkerPool launches numWorkers goroutines consuming the job queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers map[string]Handler) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, i, handlers)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, id int, handlers map[string]Handler) {
	queues := []string{QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			job, retry := processJob(ctx, handlers, result[0], result[1])
			if job == nil {
				continue
			}
			if retry {
				if encoded, err := json.Marshal(job); err == nil {
					_ = rdb.LPush(ctx, result[0], encoded).Err()
				}
				continue
			}
			SendToDLQ(ctx, rdb, DeadLetter{
				Source:   result[0],
				JobType:  job.Type,
				Payload:  job.Payload,
				Reason:   "max attempts exceeded",
				Attempts: job.Attempts,
			})
		}
	}
}

// processJob runs one raw job. It returns the job (with Attempts bumped)
// when it failed, and whether it should be retried. A nil job means done.
func processJob(ctx context.Context, handlers map[string]Handler, queue, raw string) (*Job, bool) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return nil, false
	}
	h, ok := handlers[job.Type]
	if !ok {
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("no handler for job type")
		job.Attempts = MaxJobAttempts
		return &job, false
	}

	if err := h(ctx, job.Payload); err != nil {
		job.Attempts++
		log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed")
		return &job, job.Attempts < MaxJobAttempts
	}
	log.Info().Str("type", job.Type).Str("queue", queue).Msg("job processed")
	return nil, false
}
