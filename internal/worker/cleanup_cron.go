package worker

// cleanup_cron.go removes rendered report files once their TTL elapses.
// With Redis the due times live in a sorted set drained by a ticker;
// without it each file gets its own timer.

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	CleanupKey          = "jobs:report_cleanup"
	cleanupTickInterval = 30 * time.Second
	cleanupBatchSize    = 50
	cleanupJobType      = "report_cleanup"
)

// CleanupScheduler deletes a file after the configured delay.
type CleanupScheduler interface {
	Schedule(ctx context.Context, path string) error
}

type RedisCleanupScheduler struct {
	rdb   *redis.Client
	delay time.Duration
}

func NewRedisCleanupScheduler(rdb *redis.Client, delay time.Duration) *RedisCleanupScheduler {
	return &RedisCleanupScheduler{rdb: rdb, delay: delay}
}

func (s *RedisCleanupScheduler) Schedule(ctx context.Context, path string) error {
	due := time.Now().Add(s.delay).Unix()
	return s.rdb.ZAdd(ctx, CleanupKey, redis.Z{Score: float64(due), Member: path}).Err()
}

type TimerCleanupScheduler struct {
	delay time.Duration
}

func NewTimerCleanupScheduler(delay time.Duration) *TimerCleanupScheduler {
	return &TimerCleanupScheduler{delay: delay}
}

func (s *TimerCleanupScheduler) Schedule(_ context.Context, path string) error {
	time.AfterFunc(s.delay, func() {
		if err := removeReport(path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("cleanup: failed to remove report")
		}
	})
	return nil
}

// removeReport deletes path. A file that is already gone is not an error.
func removeReport(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// StartCleanupCron drains due entries from CleanupKey every tick until ctx
// is done.
func StartCleanupCron(ctx context.Context, rdb *redis.Client) {
	go func() {
		ticker := time.NewTicker(cleanupTickInterval)
		defer ticker.Stop()

		log.Info().Msg("cleanup_cron: started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("cleanup_cron: shutting down")
				return
			case <-ticker.C:
				drainDue(ctx, rdb, time.Now())
			}
		}
	}()
}

func drainDue(ctx context.Context, rdb *redis.Client, now time.Time) {
	paths, err := rdb.ZRangeByScore(ctx, CleanupKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: cleanupBatchSize,
	}).Result()
	if err != nil {
		log.Error().Err(err).Msg("cleanup_cron: failed to read schedule")
		return
	}

	for _, p := range paths {
		if err := removeReport(p); err != nil {
			payload, _ := json.Marshal(map[string]string{"path": p})
			SendToDLQ(ctx, rdb, DeadLetter{
				Source:   CleanupKey,
				JobType:  cleanupJobType,
				Payload:  payload,
				Reason:   err.Error(),
				Attempts: 1,
			})
		}
		if err := rdb.ZRem(ctx, CleanupKey, p).Err(); err != nil {
			log.Error().Err(err).Str("path", p).Msg("cleanup_cron: failed to unschedule")
		}
	}
	if len(paths) > 0 {
		log.Debug().Int("count", len(paths)).Msg("cleanup_cron: reports removed")
	}
}
