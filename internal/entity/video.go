package entity

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptUnavailable is the sentinel stored in Video.Transcript when the
// platform has no captions for the video in any supported language. It marks
// the failure as permanent so future syncs and sweeps never re-fetch it.
const TranscriptUnavailable = "__unavailable__"

type Video struct {
	ID          uuid.UUID `json:"id"`
	CreatorID   uuid.UUID `json:"creator_id"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Transcript  *string   `json:"transcript,omitempty"`
	Analyzed    bool      `json:"analyzed"`
	AvgScore    *float64  `json:"avg_score,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasUsableTranscript reports whether the video has real transcript text,
// as opposed to nothing or the unavailable sentinel.
func (v *Video) HasUsableTranscript() bool {
	return v.Transcript != nil && *v.Transcript != "" && *v.Transcript != TranscriptUnavailable
}

// VideoMeta is what the platform listing returns before a Video row exists.
type VideoMeta struct {
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}
