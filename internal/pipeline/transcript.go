package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
	"prediction-tracker/internal/platform/youtube"
	"prediction-tracker/internal/repository/postgresql"
)

// HandleFetchTranscript runs one fetch-transcript job and then acts as the
// phase advancer: it republishes the durable transcript count and, when no
// sibling transcript jobs remain, enqueues the analysis phase.
//
// Failure policy per the error taxonomy: a permanent failure (no captions)
// writes the unavailable sentinel so no future sync re-fetches the video; a
// transient failure is returned for queue retry while budget remains, and
// writes the sentinel on the final attempt so the phase can still drain.
func (p *Pipeline) HandleFetchTranscript(ctx context.Context, job entity.PipelineJob) error {
	video, err := p.videos.GetByID(ctx, job.VideoID)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			return Permanent(fmt.Errorf("video %s: %w", job.VideoID, err))
		}
		return fmt.Errorf("load video %s: %w", job.VideoID, err)
	}

	switch {
	case video.Transcript != nil:
		// duplicate delivery: the transcript (or sentinel) is already there

	default:
		text, fetchErr := p.platform.FetchTranscriptText(ctx, video.ExternalID)
		switch {
		case fetchErr == nil:
			if err := p.videos.SetTranscript(ctx, video.ID, text); err != nil {
				return fmt.Errorf("store transcript for video %s: %w", video.ID, err)
			}

		case errors.Is(fetchErr, youtube.ErrNoTranscript):
			log.Info().
				Str("video_id", video.ID.String()).
				Str("external_id", video.ExternalID).
				Msg("transcript permanently unavailable")
			if err := p.videos.SetTranscript(ctx, video.ID, entity.TranscriptUnavailable); err != nil {
				return fmt.Errorf("store transcript sentinel for video %s: %w", video.ID, err)
			}

		case job.Attempts+1 < p.cfg.MaxAttempts:
			return fmt.Errorf("fetch transcript for video %s: %w", video.ExternalID, fetchErr)

		default:
			// transient failure but the budget is spent: record the sentinel
			// instead of leaving the video null, so the phase can drain and
			// no future sync retries it forever
			log.Warn().Err(fetchErr).
				Str("video_id", video.ID.String()).
				Int("attempts", job.Attempts+1).
				Msg("transcript fetch exhausted retries, marking unavailable")
			if err := p.videos.SetTranscript(ctx, video.ID, entity.TranscriptUnavailable); err != nil {
				return fmt.Errorf("store transcript sentinel for video %s: %w", video.ID, err)
			}
		}
	}

	return p.advanceTranscriptPhase(ctx, job.CreatorID)
}

// advanceTranscriptPhase republishes progress from the durable count and
// advances to analysis when this creator's transcript phase is exhausted.
// "Exhausted" is detected by scanning the queue for sibling jobs: the job
// currently finishing is still in the processing set, so one remaining job
// means none besides ourselves. This holds only under single-worker
// execution.
func (p *Pipeline) advanceTranscriptPhase(ctx context.Context, creatorID uuid.UUID) error {
	st := p.loadStatus(ctx, creatorID)
	if phaseRank(st.State) > phaseRank(entity.StateFetchingTranscripts) {
		// redelivered job from a phase that already advanced, do not
		// regress the status or fan the analysis phase out twice
		return nil
	}

	fetched, err := p.videos.CountWithTranscript(ctx, creatorID)
	if err != nil {
		return fmt.Errorf("count transcripts: %w", err)
	}

	st.State = entity.StateFetchingTranscripts
	st.TranscriptsFetched = fetched
	st.CurrentStep = fmt.Sprintf("Fetched transcripts for %d of %d videos", fetched, st.TotalVideos)
	p.publish(ctx, st)

	remaining, err := p.queue.CountPending(ctx, creatorID, entity.JobFetchTranscript)
	if err != nil {
		return fmt.Errorf("scan sibling transcript jobs: %w", err)
	}
	if remaining > 1 {
		return nil
	}

	log.Info().
		Str("creator_id", creatorID.String()).
		Int("transcripts_fetched", fetched).
		Msg("transcript phase exhausted, advancing to analysis")
	return p.enqueueAnalysisPhase(ctx, creatorID)
}
