// Package pipeline is the orchestrator that turns a newly registered creator
// into a fully analyzed, scored entity. It sequences four phases (video
// sync, transcript retrieval, AI analysis, completion) over a durable job
// queue, staggering jobs to pace rate-limited external calls, and repairs
// pipelines left inconsistent by a crash.
//
// The phase-advance decision scans the queue for sibling jobs and the
// completion job is ordered by a computed delay; both assume single-worker
// execution and are not race-free above concurrency 1.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
)

// Config tunes the scheduling policy. Spacing values pace calls against
// rate-limited externals: the i-th job of a phase is enqueued with delay
// i×spacing.
type Config struct {
	MonthsBack        int           // sync lookback window
	MaxVideosPerRun   int           // fan-out cap per pipeline run
	TranscriptSpacing time.Duration
	AnalysisSpacing   time.Duration
	CompletionMargin  time.Duration // safety margin after the last analysis slot
	MaxAttempts       int           // mirrors the queue's attempt budget
}

func (c *Config) defaults() {
	if c.MonthsBack <= 0 {
		c.MonthsBack = 6
	}
	if c.MaxVideosPerRun <= 0 {
		c.MaxVideosPerRun = 25
	}
	if c.TranscriptSpacing <= 0 {
		c.TranscriptSpacing = 5 * time.Second
	}
	if c.AnalysisSpacing <= 0 {
		c.AnalysisSpacing = 15 * time.Second
	}
	if c.CompletionMargin <= 0 {
		c.CompletionMargin = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
}

type Pipeline struct {
	cfg         Config
	queue       Queue
	status      StatusStore
	videos      VideoStore
	creators    CreatorStore
	predictions PredictionStore
	platform    Platform
	analyzer    Analyzer
}

func New(cfg Config, queue Queue, status StatusStore, videos VideoStore, creators CreatorStore, predictions PredictionStore, platform Platform, analyzer Analyzer) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:         cfg,
		queue:       queue,
		status:      status,
		videos:      videos,
		creators:    creators,
		predictions: predictions,
		platform:    platform,
		analyzer:    analyzer,
	}
}

// permanentError marks a failure the queue must not retry: missing rows,
// unknown job types, anything that cannot succeed on a second attempt.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// phaseRank orders the pipeline states so status writers can refuse to move
// backwards. Delivery is at-least-once: a redelivered job from an earlier
// phase must not regress the status, and completed/failed are terminal.
func phaseRank(s entity.PipelineState) int {
	switch s {
	case entity.StateSyncing:
		return 1
	case entity.StateFetchingTranscripts:
		return 2
	case entity.StateAnalyzing:
		return 3
	case entity.StateCompleted, entity.StateFailed:
		return 4
	}
	return 0
}

// loadStatus returns the cached status document or a synthesized idle one.
// Status is soft state: read failures degrade to idle rather than erroring.
func (p *Pipeline) loadStatus(ctx context.Context, creatorID uuid.UUID) entity.PipelineStatus {
	st, err := p.status.Get(ctx, creatorID)
	if err != nil {
		log.Warn().Err(err).Str("creator_id", creatorID.String()).Msg("status read failed")
	}
	if st == nil {
		return entity.PipelineStatus{CreatorID: creatorID, State: entity.StateIdle}
	}
	return *st
}

// publish writes a status document, logging failures instead of propagating
// them: progress reporting must never fail a job.
func (p *Pipeline) publish(ctx context.Context, st entity.PipelineStatus) {
	if err := p.status.Set(ctx, st); err != nil {
		log.Warn().Err(err).Str("creator_id", st.CreatorID.String()).Msg("status write failed")
	}
}

// failStatus marks the pipeline failed with the last error message.
func (p *Pipeline) failStatus(ctx context.Context, creatorID uuid.UUID, step string, cause error) {
	st := p.loadStatus(ctx, creatorID)
	if st.State == entity.StateCompleted {
		// a straggler failing after the run finished must not unseat the result
		log.Warn().Err(cause).Str("creator_id", creatorID.String()).Msg("ignoring failure after completion")
		return
	}
	st.State = entity.StateFailed
	st.CurrentStep = step
	st.Error = cause.Error()
	p.publish(ctx, st)
}
