package worker

// dlq.go parks email jobs that ran out of attempts and report files that
// could not be removed, one Redis list per source: dlq:<source>.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DeadLetterSources are the keys whose failures end up in a DLQ.
var DeadLetterSources = []string{QueueEmail, CleanupKey}

// DeadLetter is one parked failure.
type DeadLetter struct {
	Source   string          `json:"source"`
	JobType  string          `json:"job_type"`
	Payload  json.RawMessage `json:"payload"`
	Reason   string          `json:"reason"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

// SendToDLQ parks dl under its source. Failures are only logged: the caller
// has already given up on the job.
func SendToDLQ(ctx context.Context, rdb *redis.Client, dl DeadLetter) {
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now().UTC()
	}
	data, err := json.Marshal(dl)
	if err != nil {
		log.Error().Err(err).Str("source", dl.Source).Msg("dlq: failed to marshal entry")
		return
	}

	key := DLQPrefix + dl.Source
	if err := rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: failed to push")
		return
	}

	log.Warn().
		Str("source", dl.Source).
		Str("job_type", dl.JobType).
		Str("reason", dl.Reason).
		Int("attempts", dl.Attempts).
		Msg("dlq: entry parked")
}

// DeadLetters reads the DLQs for the admin API. A nil client means no
// Redis: every queue reads as empty.
type DeadLetters struct {
	rdb *redis.Client
}

func NewDeadLetters(rdb *redis.Client) *DeadLetters { return &DeadLetters{rdb: rdb} }

// Counts returns the number of parked entries per source.
func (d *DeadLetters) Counts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(DeadLetterSources))
	if d.rdb == nil {
		for _, s := range DeadLetterSources {
			out[s] = 0
		}
		return out, nil
	}

	pipe := d.rdb.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(DeadLetterSources))
	for _, s := range DeadLetterSources {
		cmds[s] = pipe.LLen(ctx, DLQPrefix+s)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("dlq: counting entries: %w", err)
	}
	for s, cmd := range cmds {
		out[s] = cmd.Val()
	}
	return out, nil
}

// Recent returns up to n of the newest entries of source, newest first.
// Entries that no longer decode are skipped.
func (d *DeadLetters) Recent(ctx context.Context, source string, n int64) ([]DeadLetter, error) {
	if !knownSource(source) {
		return nil, fmt.Errorf("dlq: unknown source %q", source)
	}
	if d.rdb == nil || n <= 0 {
		return []DeadLetter{}, nil
	}
	raw, err := d.rdb.LRange(ctx, DLQPrefix+source, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("dlq: reading %s: %w", source, err)
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, r := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(r), &dl); err != nil {
			log.Warn().Err(err).Str("source", source).Msg("dlq: undecodable entry")
			continue
		}
		out = append(out, dl)
	}
	return out, nil
}

func knownSource(source string) bool {
	for _, s := range DeadLetterSources {
		if s == source {
			return true
		}
	}
	return false
}
