package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"prediction-tracker/internal/entity"
	"prediction-tracker/internal/pipeline"
)

// Processor dispatches claimed queue jobs to the pipeline's stage handlers.
type Processor struct {
	pipe *pipeline.Pipeline
}

func NewProcessor(pipe *pipeline.Pipeline) *Processor {
	return &Processor{pipe: pipe}
}

func (p *Processor) Process(ctx context.Context, job entity.PipelineJob) error {
	start := time.Now()

	log.Info().
		Str("job_id", job.ID.String()).
		Str("type", string(job.Type)).
		Str("creator_id", job.CreatorID.String()).
		Int("attempts", job.Attempts).
		Msg("job started")

	var err error
	switch job.Type {
	case entity.JobSyncVideos:
		err = p.pipe.HandleSyncVideos(ctx, job)
	case entity.JobFetchTranscript:
		err = p.pipe.HandleFetchTranscript(ctx, job)
	case entity.JobAnalyzeVideo:
		err = p.pipe.HandleAnalyzeVideo(ctx, job)
	case entity.JobCompletePipeline:
		err = p.pipe.HandleCompletePipeline(ctx, job)
	default:
		err = pipeline.Permanent(fmt.Errorf("unknown job type %q", job.Type))
	}

	if err != nil {
		log.Error().Err(err).
			Str("job_id", job.ID.String()).
			Str("type", string(job.Type)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("job failed")
		return err
	}

	log.Info().
		Str("job_id", job.ID.String()).
		Str("type", string(job.Type)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("job done")
	return nil
}
