package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
)

// HandleCompletePipeline finalizes a run: aggregates are recomputed from the
// persisted rows (never from in-memory counters) and the status document
// gets its terminal state.
func (p *Pipeline) HandleCompletePipeline(ctx context.Context, job entity.PipelineJob) error {
	if err := p.creators.RecomputeAggregates(ctx, job.CreatorID); err != nil {
		err = fmt.Errorf("recompute aggregates: %w", err)
		p.failStatus(ctx, job.CreatorID, "Finalizing scores failed", err)
		return err
	}

	analyzed, err := p.videos.CountAnalyzed(ctx, job.CreatorID)
	if err != nil {
		err = fmt.Errorf("count analyzed videos: %w", err)
		p.failStatus(ctx, job.CreatorID, "Finalizing scores failed", err)
		return err
	}

	tracked, err := p.predictions.CountByCreator(ctx, job.CreatorID)
	if err != nil {
		err = fmt.Errorf("count predictions: %w", err)
		p.failStatus(ctx, job.CreatorID, "Finalizing scores failed", err)
		return err
	}

	now := time.Now().UTC()
	st := p.loadStatus(ctx, job.CreatorID)
	st.State = entity.StateCompleted
	st.VideosAnalyzed = analyzed
	st.CurrentStep = fmt.Sprintf("Analyzed %d videos, %d predictions tracked", analyzed, tracked)
	st.Error = ""
	st.CompletedAt = &now
	p.publish(ctx, st)

	log.Info().
		Str("creator_id", job.CreatorID.String()).
		Int("videos_analyzed", analyzed).
		Int("predictions", tracked).
		Msg("pipeline completed")
	return nil
}
