package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"prediction-tracker/internal/entity"
)

// Consumer-side ports for the pipeline's collaborators. Concrete
// implementations: service.Queue, service.StatusStore, the postgresql
// repositories, youtube.Client and service.AnalysisService.

type Queue interface {
	Enqueue(ctx context.Context, job entity.PipelineJob, delay time.Duration) error
	CountPending(ctx context.Context, creatorID uuid.UUID, types ...entity.JobType) (int, error)
}

type StatusStore interface {
	Get(ctx context.Context, creatorID uuid.UUID) (*entity.PipelineStatus, error)
	Set(ctx context.Context, status entity.PipelineStatus) error
	All(ctx context.Context) ([]entity.PipelineStatus, error)
}

type VideoStore interface {
	Upsert(ctx context.Context, creatorID uuid.UUID, meta entity.VideoMeta) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Video, error)
	MissingTranscript(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Video, error)
	AnalyzableByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Video, error)
	CountWithTranscript(ctx context.Context, creatorID uuid.UUID) (int, error)
	CountAnalyzed(ctx context.Context, creatorID uuid.UUID) (int, error)
	SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error
	MarkTranscriptsUnavailable(ctx context.Context, creatorID uuid.UUID) (int, error)
	OrphanedAnalysis(ctx context.Context, limit int) ([]entity.Video, error)
}

type CreatorStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Creator, error)
	RecomputeAggregates(ctx context.Context, id uuid.UUID) error
}

type PredictionStore interface {
	CountByCreator(ctx context.Context, creatorID uuid.UUID) (int, error)
}

// Platform lists a channel's videos and fetches transcripts.
// FetchTranscriptText returns youtube.ErrNoTranscript when the failure is
// permanent (no captions exist in any supported language).
type Platform interface {
	ListVideos(ctx context.Context, channelID string, from, to time.Time, max int) ([]entity.VideoMeta, error)
	FetchTranscriptText(ctx context.Context, videoExternalID string) (string, error)
}

// Analyzer runs extraction and verification for one video and persists the
// resulting predictions and scores.
type Analyzer interface {
	AnalyzeVideo(ctx context.Context, video *entity.Video) error
}
