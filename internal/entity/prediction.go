package entity

import (
	"time"

	"github.com/google/uuid"
)

// A prediction counts as correct when its verified accuracy score reaches
// this threshold.
const CorrectScoreThreshold = 0.7

// Prediction is one extracted forecast, owned by exactly one Video.
// Verification fields are populated after extraction, asynchronously from
// the creator's point of view.
type Prediction struct {
	ID               uuid.UUID  `json:"id"`
	VideoID          uuid.UUID  `json:"video_id"`
	Text             string     `json:"text"`
	PredictedOutcome string     `json:"predicted_outcome"`
	Timeframe        string     `json:"timeframe,omitempty"`
	AccuracyScore    *float64   `json:"accuracy_score,omitempty"`
	ActualOutcome    *string    `json:"actual_outcome,omitempty"`
	Explanation      *string    `json:"explanation,omitempty"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
