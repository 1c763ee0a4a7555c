package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"prediction-tracker/internal/ai"
	"prediction-tracker/internal/entity"
)

// Extractor is the AI side of analysis (implementation: ai.Client).
type Extractor interface {
	ExtractPredictions(ctx context.Context, title, transcript string) ([]ai.ExtractedPrediction, error)
	Verify(ctx context.Context, pred ai.ExtractedPrediction, results []ai.SearchResult) (*ai.Verification, error)
}

// Searcher fetches web evidence for verification (implementation: ai.SearchClient).
type Searcher interface {
	Search(ctx context.Context, query string) ([]ai.SearchResult, error)
}

type AnalysisVideoStore interface {
	SetAnalysis(ctx context.Context, id uuid.UUID, avgScore *float64) error
}

type AnalysisPredictionStore interface {
	CreateBatch(ctx context.Context, preds []entity.Prediction) error
	SetVerification(ctx context.Context, id uuid.UUID, score float64, outcome, explanation string, verifiedAt time.Time) error
}

// AnalysisService analyzes one video at a time: extract predictions from the
// transcript, persist them, verify each against search evidence, then roll
// the verified scores up into the video's average.
type AnalysisService struct {
	extractor   Extractor
	searcher    Searcher
	videos      AnalysisVideoStore
	predictions AnalysisPredictionStore
}

func NewAnalysisService(extractor Extractor, searcher Searcher, videos AnalysisVideoStore, predictions AnalysisPredictionStore) *AnalysisService {
	return &AnalysisService{
		extractor:   extractor,
		searcher:    searcher,
		videos:      videos,
		predictions: predictions,
	}
}

func (s *AnalysisService) AnalyzeVideo(ctx context.Context, video *entity.Video) error {
	if !video.HasUsableTranscript() {
		return fmt.Errorf("video %s has no usable transcript", video.ID)
	}

	extracted, err := s.extractor.ExtractPredictions(ctx, video.Title, *video.Transcript)
	if err != nil {
		return fmt.Errorf("extract predictions: %w", err)
	}

	if len(extracted) == 0 {
		// a video with no predictions is still analyzed, just unscored
		return s.videos.SetAnalysis(ctx, video.ID, nil)
	}

	preds := make([]entity.Prediction, 0, len(extracted))
	for _, e := range extracted {
		preds = append(preds, entity.Prediction{
			VideoID:          video.ID,
			Text:             e.Text,
			PredictedOutcome: e.PredictedOutcome,
			Timeframe:        e.Timeframe,
		})
	}
	if err := s.predictions.CreateBatch(ctx, preds); err != nil {
		return fmt.Errorf("persist predictions: %w", err)
	}

	var (
		sum      float64
		verified int
	)
	for i, e := range extracted {
		score, ok := s.verifyOne(ctx, preds[i].ID, e)
		if !ok {
			continue
		}
		sum += score
		verified++
	}

	var avg *float64
	if verified > 0 {
		v := sum / float64(verified)
		avg = &v
	}
	return s.videos.SetAnalysis(ctx, video.ID, avg)
}

// verifyOne verifies a single prediction. Failures are logged and skipped:
// one prediction's verification must not fail the video, just as one video
// must not fail the pipeline.
func (s *AnalysisService) verifyOne(ctx context.Context, id uuid.UUID, pred ai.ExtractedPrediction) (float64, bool) {
	results, err := s.searcher.Search(ctx, searchQuery(pred))
	if err != nil {
		log.Warn().Err(err).Str("prediction_id", id.String()).Msg("evidence search failed, verifying without results")
		results = nil
	}

	v, err := s.extractor.Verify(ctx, pred, results)
	if err != nil {
		log.Error().Err(err).Str("prediction_id", id.String()).Msg("verification failed")
		return 0, false
	}

	if err := s.predictions.SetVerification(ctx, id, v.Score, v.Outcome, v.Explanation, time.Now().UTC()); err != nil {
		log.Error().Err(err).Str("prediction_id", id.String()).Msg("persist verification failed")
		return 0, false
	}
	return v.Score, true
}

func searchQuery(pred ai.ExtractedPrediction) string {
	q := pred.PredictedOutcome
	if q == "" {
		q = pred.Text
	}
	if pred.Timeframe != "" {
		q += " " + pred.Timeframe
	}
	return q
}
