package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
)

const orphanBatchSize = 100

// RunRecoverySweep detects and repairs pipelines a prior crash left
// inconsistent. It runs once at startup (after the stale-job requeue) and
// again on a maintenance schedule; both repairs are idempotent, so repeated
// runs are safe.
func (p *Pipeline) RunRecoverySweep(ctx context.Context) error {
	if err := p.repairStuckTranscriptPhases(ctx); err != nil {
		return err
	}
	return p.sweepOrphanedAnalysis(ctx)
}

// repairStuckTranscriptPhases finds creators whose cached status says
// fetching-transcripts while no transcript job remains queued or active,
// the signature of a process that died mid-phase after the queue drained.
// The repair force-advances: transcript-less videos get the unavailable
// sentinel, then the analysis phase is enqueued out of band.
func (p *Pipeline) repairStuckTranscriptPhases(ctx context.Context) error {
	statuses, err := p.status.All(ctx)
	if err != nil {
		return fmt.Errorf("scan status documents: %w", err)
	}

	for _, st := range statuses {
		if st.State != entity.StateFetchingTranscripts {
			continue
		}

		pending, err := p.queue.CountPending(ctx, st.CreatorID, entity.JobFetchTranscript)
		if err != nil {
			log.Error().Err(err).Str("creator_id", st.CreatorID.String()).Msg("sibling scan failed during recovery")
			continue
		}
		if pending > 0 {
			continue // phase is genuinely in flight
		}

		if err := p.forceAdvanceToAnalysis(ctx, st.CreatorID); err != nil {
			log.Error().Err(err).Str("creator_id", st.CreatorID.String()).Msg("stuck-transcript repair failed")
			continue
		}
		log.Info().Str("creator_id", st.CreatorID.String()).Msg("repaired pipeline stuck in transcript phase")
	}
	return nil
}

// sweepOrphanedAnalysis scans (bounded) for videos that have a usable
// transcript but were never analyzed and whose creator has no active
// pipeline, then restarts the analysis phase per creator.
func (p *Pipeline) sweepOrphanedAnalysis(ctx context.Context) error {
	orphans, err := p.videos.OrphanedAnalysis(ctx, orphanBatchSize)
	if err != nil {
		return fmt.Errorf("scan orphaned videos: %w", err)
	}

	byCreator := make(map[uuid.UUID]int)
	for _, v := range orphans {
		byCreator[v.CreatorID]++
	}

	for creatorID, count := range byCreator {
		active, err := p.pipelineActive(ctx, creatorID)
		if err != nil {
			log.Error().Err(err).Str("creator_id", creatorID.String()).Msg("activity check failed during recovery")
			continue
		}
		if active {
			continue
		}

		if err := p.enqueueAnalysisPhase(ctx, creatorID); err != nil {
			log.Error().Err(err).Str("creator_id", creatorID.String()).Msg("orphaned-analysis restart failed")
			continue
		}
		log.Info().
			Str("creator_id", creatorID.String()).
			Int("orphaned_videos", count).
			Msg("restarted analysis for orphaned videos")
	}
	return nil
}

// pipelineActive reports whether the creator has a run in progress, judged
// by the cached status and by jobs still in the queue.
func (p *Pipeline) pipelineActive(ctx context.Context, creatorID uuid.UUID) (bool, error) {
	st := p.loadStatus(ctx, creatorID)
	switch st.State {
	case entity.StateSyncing, entity.StateFetchingTranscripts, entity.StateAnalyzing:
		return true, nil
	}

	pending, err := p.queue.CountPending(ctx, creatorID)
	if err != nil {
		return false, err
	}
	return pending > 0, nil
}

// forceAdvanceToAnalysis is the stuck-at-transcript repair: seal every
// transcript-less video with the sentinel, then enqueue the analysis phase.
func (p *Pipeline) forceAdvanceToAnalysis(ctx context.Context, creatorID uuid.UUID) error {
	marked, err := p.videos.MarkTranscriptsUnavailable(ctx, creatorID)
	if err != nil {
		return fmt.Errorf("mark transcripts unavailable: %w", err)
	}
	if marked > 0 {
		log.Info().
			Str("creator_id", creatorID.String()).
			Int("marked", marked).
			Msg("sealed transcript-less videos")
	}
	return p.enqueueAnalysisPhase(ctx, creatorID)
}
