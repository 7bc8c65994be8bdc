package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"trinity/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReceipt = "jobs:receipt"
	QueueEmail   = "jobs:email"

	JobReceipt = "receipt"
	JobEmail   = "email"

	// MaxAttempts is how many times a job runs before it is dead-lettered.
	MaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Handler runs one job type. Returning an error wrapped with Permanent skips
// the remaining retries.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error { return permanentError{err: err} }

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb redis.Cmdable
}

func NewDispatcher(rdb redis.Cmdable) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// ReceiptJobPayload asks for the receipt of one invoice.
type ReceiptJobPayload struct {
	InvoiceID string `json:"invoice_id"`
}

// EnqueueReceipt pushes a receipt job to Redis.
func (d *Dispatcher) EnqueueReceipt(ctx context.Context, invoiceID uuid.UUID) error {
	return d.enqueue(ctx, QueueReceipt, Job{Type: JobReceipt}, ReceiptJobPayload{InvoiceID: invoiceID.String()})
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, Job{Type: JobEmail}, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue string, job Job, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job.Payload = data
	return d.push(ctx, queue, job)
}

func (d *Dispatcher) push(ctx context.Context, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// queueFor maps a job type to its list.
func queueFor(jobType string) string {
	if jobType == JobEmail {
		return QueueEmail
	}
	return QueueReceipt
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      redis.Cmdable
	handlers map[string]Handler
	requeue  *Dispatcher
	metrics  *metrics.Metrics
	// backoff is how long a worker waits after Redis itself failed.
	backoff time.Duration
	wg      sync.WaitGroup
}

const defaultBackoff = time.Second

func NewPool(rdb redis.Cmdable, handlers map[string]Handler, m *metrics.Metrics) *Pool {
	return &Pool{rdb: rdb, handlers: handlers, requeue: NewDispatcher(rdb), metrics: m, backoff: defaultBackoff}
}

// Start launches numWorkers goroutines. Each blocks on BRPOP, so idle
// workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

// Wait blocks until every worker has returned after ctx was cancelled.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			log.Info().Msgf("worker %d shutting down", id)
			return
		}
		// Blocking pop; waits up to 5s then loops to check ctx
		result, err := p.rdb.BRPop(ctx, 5*time.Second, Queues...).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			log.Warn().Err(err).Int("worker", id).Dur("backoff", p.backoff).Msg("dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}
		if len(result) < 2 {
			continue
		}
		p.processJob(ctx, result[0], result[1])
	}
}

// Outcomes reported to metrics and logs.
const (
	outcomeOK      = "ok"
	outcomeRetry   = "retry"
	outcomeDLQ     = "dlq"
	outcomeInvalid = "invalid"
)

// decide picks what happens to job after its handler returned err.
func decide(job Job, err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case isPermanent(err), job.Attempts+1 >= MaxAttempts:
		return outcomeDLQ
	default:
		return outcomeRetry
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		body, _ := json.Marshal(raw)
		p.bury(ctx, queue, Job{Type: "unknown", Payload: body}, "malformed envelope: "+err.Error())
		p.metrics.JobProcessed("unknown", outcomeInvalid)
		return
	}

	h, ok := p.handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		p.bury(ctx, queue, job, "no handler registered")
		p.metrics.JobProcessed(job.Type, outcomeInvalid)
		return
	}

	err := h.Process(ctx, job.Payload)
	outcome := decide(job, err)
	p.metrics.JobProcessed(job.Type, outcome)

	switch outcome {
	case outcomeOK:
		log.Debug().Str("type", job.Type).Msg("job done")
	case outcomeRetry:
		job.Attempts++
		log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeueing")
		if perr := p.requeue.push(ctx, queueFor(job.Type), job); perr != nil {
			log.Error().Err(perr).Str("type", job.Type).Msg("requeue failed")
			p.bury(ctx, queue, job, err.Error())
		}
	case outcomeDLQ:
		job.Attempts++
		p.bury(ctx, queue, job, err.Error())
	}
}
