package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
)

// Start kicks off a pipeline run for the creator: status goes to syncing and
// one sync-videos job is enqueued. Idempotent in effect: sync upserts by
// external id and downstream phases select only outstanding work, so calling
// it again on a creator with existing state redoes nothing durable.
func (p *Pipeline) Start(ctx context.Context, creatorID uuid.UUID) error {
	creator, err := p.creators.GetByID(ctx, creatorID)
	if err != nil {
		return fmt.Errorf("load creator %s: %w", creatorID, err)
	}

	now := time.Now().UTC()
	st := entity.PipelineStatus{
		CreatorID:   creatorID,
		State:       entity.StateSyncing,
		CurrentStep: "Starting video sync",
		StartedAt:   &now,
	}
	if err := p.status.Set(ctx, st); err != nil {
		return fmt.Errorf("initialize status: %w", err)
	}

	job := entity.NewSyncJob(creatorID, creator.ChannelID, p.cfg.MonthsBack)
	if err := p.queue.Enqueue(ctx, job, 0); err != nil {
		return fmt.Errorf("enqueue sync job: %w", err)
	}

	log.Info().
		Str("creator_id", creatorID.String()).
		Str("channel_id", creator.ChannelID).
		Msg("pipeline started")
	return nil
}

// Status returns the cached progress document, or a synthesized idle status
// when none exists (never ran, or the entry expired).
func (p *Pipeline) Status(ctx context.Context, creatorID uuid.UUID) (*entity.PipelineStatus, error) {
	st, err := p.status.Get(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &entity.PipelineStatus{CreatorID: creatorID, State: entity.StateIdle}, nil
	}
	return st, nil
}

// ForceRestartAnalysis is the administrative escape hatch for a pipeline
// stuck in the transcript phase: equivalent to the recovery sweep's repair,
// invoked on demand.
func (p *Pipeline) ForceRestartAnalysis(ctx context.Context, creatorID uuid.UUID) error {
	if _, err := p.creators.GetByID(ctx, creatorID); err != nil {
		return fmt.Errorf("load creator %s: %w", creatorID, err)
	}
	return p.forceAdvanceToAnalysis(ctx, creatorID)
}
