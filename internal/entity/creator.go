package entity

import (
	"time"

	"github.com/google/uuid"
)

// Creator aggregates are derived: recomputed from Video/Prediction rows
// whenever a video finishes analysis, never incremented in place.
type Creator struct {
	ID                 uuid.UUID `json:"id"`
	ChannelID          string    `json:"channel_id"`
	Name               string    `json:"name"`
	AvgScore           *float64  `json:"avg_score,omitempty"`
	TotalPredictions   int       `json:"total_predictions"`
	CorrectPredictions int       `json:"correct_predictions"`
	AccuracyPercent    *float64  `json:"accuracy_percent,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
