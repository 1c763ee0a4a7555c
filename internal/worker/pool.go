package worker

import (
	"context"
	"sync"
	"time"

	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
	"prediction-tracker/internal/pipeline"
	"prediction-tracker/internal/service"
)

// Pool claims jobs from the queue and hands them to the processor. The
// pipeline runs with workers=1 on purpose: a single worker serializes calls
// against rate-limited externals and is what makes the sibling-scan phase
// advance sound. Raising it breaks those assumptions.
type Pool struct {
	queue        service.Queue
	processor    *Processor
	workers      int
	claimTimeout time.Duration
	promoteEvery time.Duration
	drainTimeout time.Duration
}

func NewPool(queue service.Queue, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		queue:        queue,
		processor:    processor,
		workers:      workers,
		claimTimeout: 5 * time.Second,
		promoteEvery: time.Second,
		drainTimeout: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled, then drains: no new claims, a bounded
// wait for in-flight jobs. Jobs still unacked after the wait stay on the
// processing list and are requeued by the reaper after restart.
func (p *Pool) Run(ctx context.Context) {
	log.Info().Int("workers", p.workers).Msg("worker pool started")

	// queue bookkeeping (ack/retry) must survive ctx cancellation so jobs
	// finishing during shutdown are not redelivered needlessly
	ackCtx := context.WithoutCancel(ctx)

	// promoter: move due delayed jobs onto the ready list
	go func() {
		ticker := time.NewTicker(p.promoteEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := p.queue.PromoteDue(ctx, 100); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Msg("promote delayed jobs failed")
				}
			}
		}
	}()

	jobCh := make(chan entity.PipelineJob)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for job := range jobCh {
				p.finish(ackCtx, job, p.processor.Process(ctx, job))
			}
		}(i + 1)
	}

	for {
		select {
		case <-ctx.Done():
			close(jobCh)
			p.drain(&wg)
			return
		default:
			job, err := p.queue.ClaimBlocking(ctx, p.claimTimeout)
			if err != nil {
				// ErrEmpty, redis timeout or ctx cancel: nothing claimable
				continue
			}
			select {
			case jobCh <- *job:
			case <-ctx.Done():
				close(jobCh)
				p.drain(&wg)
				return
			}
		}
	}
}

// finish routes the handler result back into the queue: ack on success, the
// failed set for permanent errors, backoff retry for everything else.
func (p *Pool) finish(ctx context.Context, job entity.PipelineJob, procErr error) {
	switch {
	case procErr == nil:
		if err := p.queue.Ack(ctx, job); err != nil {
			log.Error().Err(err).Str("job_id", job.ID.String()).Msg("ack failed")
		}

	case pipeline.IsPermanent(procErr):
		if err := p.queue.Fail(ctx, job, procErr); err != nil {
			log.Error().Err(err).Str("job_id", job.ID.String()).Msg("fail routing failed")
		}

	default:
		retried, err := p.queue.Retry(ctx, job, procErr)
		if err != nil {
			log.Error().Err(err).Str("job_id", job.ID.String()).Msg("retry routing failed")
			return
		}
		if !retried {
			log.Warn().
				Str("job_id", job.ID.String()).
				Str("type", string(job.Type)).
				Int("attempts", job.Attempts+1).
				Msg("attempt budget exhausted, job moved to failed set")
		}
	}
}

func (p *Pool) drain(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("worker pool stopped")
	case <-time.After(p.drainTimeout):
		log.Warn().Msg("worker pool drain timed out, in-flight job left for the reaper")
	}
}
