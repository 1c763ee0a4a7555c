package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
)

// HandleSyncVideos runs the sync-videos phase: list the channel's recent
// videos, upsert them, then fan out staggered fetch-transcript jobs for the
// ones still lacking a transcript.
//
// Any error fails the whole sync job so the queue's retry policy covers it
// end to end; the upsert is idempotent by external id, so a re-run from
// scratch is safe.
func (p *Pipeline) HandleSyncVideos(ctx context.Context, job entity.PipelineJob) error {
	st := p.loadStatus(ctx, job.CreatorID)
	st.State = entity.StateSyncing
	st.CurrentStep = fmt.Sprintf("Fetching videos from the last %d months", job.MonthsBack)
	st.Error = ""
	if st.StartedAt == nil {
		now := time.Now().UTC()
		st.StartedAt = &now
	}
	p.publish(ctx, st)

	to := time.Now().UTC()
	from := to.AddDate(0, -job.MonthsBack, 0)

	metas, err := p.platform.ListVideos(ctx, job.ChannelID, from, to, p.cfg.MaxVideosPerRun)
	if err != nil {
		err = fmt.Errorf("list videos for channel %s: %w", job.ChannelID, err)
		p.failStatus(ctx, job.CreatorID, "Video sync failed", err)
		return err
	}

	for _, meta := range metas {
		if _, err := p.videos.Upsert(ctx, job.CreatorID, meta); err != nil {
			err = fmt.Errorf("upsert video %s: %w", meta.ExternalID, err)
			p.failStatus(ctx, job.CreatorID, "Video sync failed", err)
			return err
		}
	}

	st.State = entity.StateFetchingTranscripts
	st.TotalVideos = len(metas)
	st.CurrentStep = fmt.Sprintf("Fetching transcripts for %d videos", len(metas))
	p.publish(ctx, st)

	needs, err := p.videos.MissingTranscript(ctx, job.CreatorID, p.cfg.MaxVideosPerRun)
	if err != nil {
		err = fmt.Errorf("select videos missing transcripts: %w", err)
		p.failStatus(ctx, job.CreatorID, "Video sync failed", err)
		return err
	}

	log.Info().
		Str("creator_id", job.CreatorID.String()).
		Int("videos", len(metas)).
		Int("transcripts_needed", len(needs)).
		Msg("video sync complete")

	if len(needs) == 0 {
		// every video already has a transcript value (or there are none):
		// skip straight to the analysis phase
		return p.enqueueAnalysisPhase(ctx, job.CreatorID)
	}

	for i, v := range needs {
		delay := time.Duration(i) * p.cfg.TranscriptSpacing
		if err := p.queue.Enqueue(ctx, entity.NewFetchTranscriptJob(job.CreatorID, v.ID), delay); err != nil {
			err = fmt.Errorf("enqueue fetch-transcript for video %s: %w", v.ID, err)
			p.failStatus(ctx, job.CreatorID, "Video sync failed", err)
			return err
		}
	}
	return nil
}
