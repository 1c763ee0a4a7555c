package entity

import (
	"time"

	"github.com/google/uuid"
)

type PipelineState string

const (
	StateIdle                PipelineState = "idle"
	StateSyncing             PipelineState = "syncing"
	StateFetchingTranscripts PipelineState = "fetching-transcripts"
	StateAnalyzing           PipelineState = "analyzing"
	StateCompleted           PipelineState = "completed"
	StateFailed              PipelineState = "failed"
)

// PipelineStatus is the per-creator progress document. It is soft state:
// a cache of progress kept in redis with a TTL, rebuildable from the
// relational counts at any time. Absent means idle.
type PipelineStatus struct {
	CreatorID          uuid.UUID     `json:"creator_id"`
	State              PipelineState `json:"state"`
	TotalVideos        int           `json:"total_videos"`
	TranscriptsFetched int           `json:"transcripts_fetched"`
	VideosAnalyzed     int           `json:"videos_analyzed"`
	CurrentStep        string        `json:"current_step"`
	Error              string        `json:"error,omitempty"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
}

type JobType string

const (
	JobSyncVideos       JobType = "sync-videos"
	JobFetchTranscript  JobType = "fetch-transcript"
	JobAnalyzeVideo     JobType = "analyze-video"
	JobCompletePipeline JobType = "complete-pipeline"
)

// PipelineJob is the unit queued in redis. It is a tagged union over the
// four job types: sync jobs carry ChannelID/MonthsBack, transcript and
// analysis jobs carry VideoID. Jobs are immutable once enqueued; Attempts
// is bumped only on the retry copy the queue re-enqueues.
type PipelineJob struct {
	ID         uuid.UUID `json:"id"`
	Type       JobType   `json:"type"`
	CreatorID  uuid.UUID `json:"creator_id"`
	ChannelID  string    `json:"channel_id,omitempty"`
	MonthsBack int       `json:"months_back,omitempty"`
	VideoID    uuid.UUID `json:"video_id,omitempty"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func NewSyncJob(creatorID uuid.UUID, channelID string, monthsBack int) PipelineJob {
	return PipelineJob{
		ID:         uuid.New(),
		Type:       JobSyncVideos,
		CreatorID:  creatorID,
		ChannelID:  channelID,
		MonthsBack: monthsBack,
		EnqueuedAt: time.Now().UTC(),
	}
}

func NewFetchTranscriptJob(creatorID, videoID uuid.UUID) PipelineJob {
	return PipelineJob{
		ID:         uuid.New(),
		Type:       JobFetchTranscript,
		CreatorID:  creatorID,
		VideoID:    videoID,
		EnqueuedAt: time.Now().UTC(),
	}
}

func NewAnalyzeVideoJob(creatorID, videoID uuid.UUID) PipelineJob {
	return PipelineJob{
		ID:         uuid.New(),
		Type:       JobAnalyzeVideo,
		CreatorID:  creatorID,
		VideoID:    videoID,
		EnqueuedAt: time.Now().UTC(),
	}
}

func NewCompletePipelineJob(creatorID uuid.UUID) PipelineJob {
	return PipelineJob{
		ID:         uuid.New(),
		Type:       JobCompletePipeline,
		CreatorID:  creatorID,
		EnqueuedAt: time.Now().UTC(),
	}
}
