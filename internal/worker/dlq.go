package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DLQPrefix namespaces the dead letter list of each job queue.
const DLQPrefix = "dlq:"

// Queues lists every job queue the pool consumes, in BRPOP priority order.
var Queues = []string{QueueReceipt, QueueEmail}

func deadLetterKey(queue string) string { return DLQPrefix + queue }

// DeadLetter is a job that will not be retried again. It keeps the original
// envelope so it can be pushed back onto its queue by hand.
type DeadLetter struct {
	Queue    string `json:"queue"`
	Job      Job    `json:"job"`
	Reason   string `json:"reason"`
	FailedAt string `json:"failed_at"`
}

// bury parks job on the dead letter list of queue. Failures are logged only:
// the job has already been taken off its queue and there is nowhere else to put it.
func (p *Pool) bury(ctx context.Context, queue string, job Job, reason string) {
	entry := DeadLetter{
		Queue:    queue,
		Job:      job,
		Reason:   reason,
		FailedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dead letter encode failed")
		return
	}
	key := deadLetterKey(queue)
	if err := p.rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Str("type", job.Type).Msg("dead letter push failed")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("type", job.Type).
		Int("attempts", job.Attempts).
		Str("reason", reason).
		Msg("job dead-lettered")
}

// DeadLetterDepths returns the length of the dead letter list of every queue.
func DeadLetterDepths(ctx context.Context, rdb redis.Cmdable) (map[string]int64, error) {
	depths := make(map[string]int64, len(Queues))
	for _, q := range Queues {
		n, err := rdb.LLen(ctx, deadLetterKey(q)).Result()
		if err != nil {
			return nil, err
		}
		depths[q] = n
	}
	return depths, nil
}

// MonitorDeadLetters publishes the dead letter depths as gauges every
// interval until ctx is done.
func (p *Pool) MonitorDeadLetters(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		p.sampleDeadLetters(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (p *Pool) sampleDeadLetters(ctx context.Context) {
	depths, err := DeadLetterDepths(ctx, p.rdb)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("dead letter depth unavailable")
		}
		return
	}
	for q, n := range depths {
		p.metrics.SetDeadLetterDepth(q, n)
	}
}
