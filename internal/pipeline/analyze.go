package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
	"prediction-tracker/internal/repository/postgresql"
)

// enqueueAnalysisPhase selects the creator's analyzable videos (capped),
// fans out staggered analyze-video jobs and one trailing complete-pipeline
// job. The completion job's delay is count×spacing plus a safety margin: a
// timer-based ordering guarantee, not a barrier, so it assumes job execution
// keeps pace with the enqueue-time estimates.
//
// Shared by the transcript-phase advancer, the recovery sweep and the
// force-restart escape hatch; safe to invoke for a creator with nothing to
// analyze (the completion job alone finalizes the pipeline).
func (p *Pipeline) enqueueAnalysisPhase(ctx context.Context, creatorID uuid.UUID) error {
	vids, err := p.videos.AnalyzableByCreator(ctx, creatorID, p.cfg.MaxVideosPerRun)
	if err != nil {
		return fmt.Errorf("select analyzable videos: %w", err)
	}

	st := p.loadStatus(ctx, creatorID)
	st.State = entity.StateAnalyzing
	st.CurrentStep = fmt.Sprintf("Analyzing %d videos", len(vids))
	st.Error = ""
	p.publish(ctx, st)

	for i, v := range vids {
		delay := time.Duration(i) * p.cfg.AnalysisSpacing
		if err := p.queue.Enqueue(ctx, entity.NewAnalyzeVideoJob(creatorID, v.ID), delay); err != nil {
			return fmt.Errorf("enqueue analyze-video for video %s: %w", v.ID, err)
		}
	}

	completionDelay := time.Duration(len(vids))*p.cfg.AnalysisSpacing + p.cfg.CompletionMargin
	if err := p.queue.Enqueue(ctx, entity.NewCompletePipelineJob(creatorID), completionDelay); err != nil {
		return fmt.Errorf("enqueue complete-pipeline: %w", err)
	}

	log.Info().
		Str("creator_id", creatorID.String()).
		Int("videos", len(vids)).
		Dur("completion_delay", completionDelay).
		Msg("analysis phase enqueued")
	return nil
}

// HandleAnalyzeVideo analyzes one video. An analysis failure is logged and
// swallowed: a single video must not halt the batch or the trailing
// completion job.
func (p *Pipeline) HandleAnalyzeVideo(ctx context.Context, job entity.PipelineJob) error {
	video, err := p.videos.GetByID(ctx, job.VideoID)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			return Permanent(fmt.Errorf("video %s: %w", job.VideoID, err))
		}
		return fmt.Errorf("load video %s: %w", job.VideoID, err)
	}

	if video.Analyzed {
		// duplicate delivery
		return p.republishAnalysisProgress(ctx, job.CreatorID)
	}

	if err := p.analyzer.AnalyzeVideo(ctx, video); err != nil {
		log.Error().Err(err).
			Str("creator_id", job.CreatorID.String()).
			Str("video_id", video.ID.String()).
			Msg("video analysis failed, continuing batch")
		return p.republishAnalysisProgress(ctx, job.CreatorID)
	}

	// aggregates are derived: recompute from rows after every analyzed video
	if err := p.creators.RecomputeAggregates(ctx, job.CreatorID); err != nil {
		log.Warn().Err(err).Str("creator_id", job.CreatorID.String()).Msg("aggregate recompute failed")
	}
	return p.republishAnalysisProgress(ctx, job.CreatorID)
}

func (p *Pipeline) republishAnalysisProgress(ctx context.Context, creatorID uuid.UUID) error {
	st := p.loadStatus(ctx, creatorID)
	if phaseRank(st.State) > phaseRank(entity.StateAnalyzing) {
		// redelivered job after completion, the terminal status stands
		return nil
	}

	analyzed, err := p.videos.CountAnalyzed(ctx, creatorID)
	if err != nil {
		return fmt.Errorf("count analyzed videos: %w", err)
	}

	st.State = entity.StateAnalyzing
	st.VideosAnalyzed = analyzed
	st.CurrentStep = fmt.Sprintf("Analyzed %d of %d videos", analyzed, st.TotalVideos)
	p.publish(ctx, st)
	return nil
}
