package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"prediction-tracker/internal/entity"
)

// ErrEmpty is returned by ClaimBlocking when the wait window elapsed with
// nothing to claim.
var ErrEmpty = errors.New("queue empty")

// Queue is the durable pipeline job queue. Delivery is at-least-once:
// handlers must be idempotent or tolerant of duplicates.
type Queue interface {
	Enqueue(ctx context.Context, job entity.PipelineJob, delay time.Duration) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (*entity.PipelineJob, error)
	Ack(ctx context.Context, job entity.PipelineJob) error
	// Retry re-enqueues the job with exponential backoff. It reports false
	// when the attempt budget is exhausted and the job was moved to the
	// failed set instead.
	Retry(ctx context.Context, job entity.PipelineJob, cause error) (bool, error)
	Fail(ctx context.Context, job entity.PipelineJob, cause error) error
	PromoteDue(ctx context.Context, limit int64) (int64, error)
	RequeueStale(ctx context.Context, max int64) (int64, error)
	CountPending(ctx context.Context, creatorID uuid.UUID, types ...entity.JobType) (int, error)
}

type QueueOptions struct {
	MaxAttempts int           // total tries per job, including the first
	BackoffBase time.Duration // retry delay doubles per attempt
}

func (o *QueueOptions) defaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 30 * time.Second
	}
}

// redisPipelineQueue is a reliable FIFO queue on redis lists, with a sorted
// set holding delayed jobs keyed by their ready-at time.
//
// Enqueue: LPUSH ready (or ZADD delayed when a delay is set)
// Claim:   BRPOPLPUSH ready -> processing
// Ack:     LREM processing
// Promote: move due members delayed -> ready
// Reaper:  RPOPLPUSH processing -> ready (crash recovery, at-least-once)
//
// The payload on the wire is the JSON-encoded PipelineJob itself; jobs are
// immutable once enqueued, so decode+re-encode of a claimed job reproduces
// the exact list member for LREM.
type redisPipelineQueue struct {
	rdb  *redis.Client
	opts QueueOptions

	readyKey      string
	processingKey string
	delayedKey    string
	failedKey     string
}

func NewPipelineQueue(rdb *redis.Client, keyPrefix string, opts QueueOptions) Queue {
	opts.defaults()
	if keyPrefix == "" {
		keyPrefix = "pipeline:jobs"
	}
	return &redisPipelineQueue{
		rdb:           rdb,
		opts:          opts,
		readyKey:      keyPrefix + ":ready",
		processingKey: keyPrefix + ":processing",
		delayedKey:    keyPrefix + ":delayed",
		failedKey:     keyPrefix + ":failed",
	}
}

func (q *redisPipelineQueue) Enqueue(ctx context.Context, job entity.PipelineJob, delay time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if delay > 0 {
		readyAt := float64(time.Now().Add(delay).UnixMilli())
		return q.rdb.ZAdd(ctx, q.delayedKey, redis.Z{Score: readyAt, Member: string(payload)}).Err()
	}
	return q.rdb.LPush(ctx, q.readyKey, payload).Err()
}

func (q *redisPipelineQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (*entity.PipelineJob, error) {
	if timeout <= 0 {
		timeout = time.Second
	}

	payload, err := q.rdb.BRPopLPush(ctx, q.readyKey, q.processingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}

	var job entity.PipelineJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		// poison entry: drop it from processing so it cannot loop forever
		_ = q.rdb.LRem(ctx, q.processingKey, 1, payload).Err()
		if env, envErr := failedEnvelope(nil, payload, err); envErr == nil {
			_ = q.rdb.LPush(ctx, q.failedKey, env).Err()
		}
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return &job, nil
}

func (q *redisPipelineQueue) removeProcessing(ctx context.Context, job entity.PipelineJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.rdb.LRem(ctx, q.processingKey, 1, string(payload)).Err()
}

func (q *redisPipelineQueue) Ack(ctx context.Context, job entity.PipelineJob) error {
	return q.removeProcessing(ctx, job)
}

func (q *redisPipelineQueue) Retry(ctx context.Context, job entity.PipelineJob, cause error) (bool, error) {
	if err := q.removeProcessing(ctx, job); err != nil {
		return false, err
	}

	if job.Attempts+1 >= q.opts.MaxAttempts {
		return false, q.pushFailed(ctx, job, cause)
	}

	retry := job
	retry.Attempts++
	backoff := q.opts.BackoffBase << uint(job.Attempts)
	return true, q.Enqueue(ctx, retry, backoff)
}

func (q *redisPipelineQueue) Fail(ctx context.Context, job entity.PipelineJob, cause error) error {
	if err := q.removeProcessing(ctx, job); err != nil {
		return err
	}
	return q.pushFailed(ctx, job, cause)
}

// failedJob is the single envelope format for the failed list. Payload
// carries the raw list member when it could not be decoded into a job.
type failedJob struct {
	Job      *entity.PipelineJob `json:"job,omitempty"`
	Payload  string              `json:"payload,omitempty"`
	Error    string              `json:"error"`
	FailedAt time.Time           `json:"failed_at"`
}

func failedEnvelope(job *entity.PipelineJob, rawPayload string, cause error) ([]byte, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return json.Marshal(failedJob{Job: job, Payload: rawPayload, Error: msg, FailedAt: time.Now().UTC()})
}

func (q *redisPipelineQueue) pushFailed(ctx context.Context, job entity.PipelineJob, cause error) error {
	payload, err := failedEnvelope(&job, "", cause)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.failedKey, payload).Err()
}

// PromoteDue moves delayed jobs whose ready-at time has passed onto the
// ready list, preserving their relative order.
func (q *redisPipelineQueue) PromoteDue(ctx context.Context, limit int64) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	now := fmt.Sprintf("%d", time.Now().UnixMilli())

	members, err := q.rdb.ZRangeByScore(ctx, q.delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: limit,
	}).Result()
	if err != nil {
		return 0, err
	}

	var moved int64
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.delayedKey, m).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			// another process promoted it first
			continue
		}
		if err := q.rdb.LPush(ctx, q.readyKey, m).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// RequeueStale moves claimed-but-unfinished jobs back onto the ready list.
// Run after a restart: anything still in processing belonged to a dead
// worker.
func (q *redisPipelineQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		_, err := q.rdb.RPopLPush(ctx, q.processingKey, q.readyKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// CountPending counts the creator's jobs across the ready, delayed and
// processing sets, optionally narrowed to the given types. The phase
// advancer uses this sibling scan to detect an exhausted phase; it assumes
// single-worker execution (the job currently running counts as one).
func (q *redisPipelineQueue) CountPending(ctx context.Context, creatorID uuid.UUID, types ...entity.JobType) (int, error) {
	ready, err := q.rdb.LRange(ctx, q.readyKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	processing, err := q.rdb.LRange(ctx, q.processingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	delayed, err := q.rdb.ZRange(ctx, q.delayedKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	match := func(j entity.PipelineJob) bool {
		if j.CreatorID != creatorID {
			return false
		}
		if len(types) == 0 {
			return true
		}
		for _, t := range types {
			if j.Type == t {
				return true
			}
		}
		return false
	}

	count := 0
	for _, set := range [][]string{ready, processing, delayed} {
		for _, payload := range set {
			var j entity.PipelineJob
			if err := json.Unmarshal([]byte(payload), &j); err != nil {
				continue
			}
			if match(j) {
				count++
			}
		}
	}
	return count, nil
}
