package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"prediction-tracker/internal/entity"
)

// Ports for the HTTP-facing creator operations (implementations: the
// postgresql repositories and pipeline.Pipeline).

type CreatorRepository interface {
	Create(ctx context.Context, channelID, name string) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Creator, error)
	List(ctx context.Context, limit int) ([]entity.Creator, error)
}

type PredictionRepository interface {
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Prediction, error)
}

type PipelineStarter interface {
	Start(ctx context.Context, creatorID uuid.UUID) error
}

type CreatorService struct {
	creators    CreatorRepository
	predictions PredictionRepository
	pipeline    PipelineStarter
	validate    *validator.Validate
}

func NewCreatorService(creators CreatorRepository, predictions PredictionRepository, pipeline PipelineStarter) *CreatorService {
	return &CreatorService{
		creators:    creators,
		predictions: predictions,
		pipeline:    pipeline,
		validate:    validator.New(),
	}
}

type RegisterCreatorRequest struct {
	ChannelID string `json:"channel_id" validate:"required,max=128"`
	Name      string `json:"name" validate:"required,max=200"`
}

// Register creates (or re-registers) a creator and starts its pipeline.
// Registration is upsert-by-channel, so repeating it is safe.
func (s *CreatorService) Register(ctx context.Context, req RegisterCreatorRequest) (uuid.UUID, error) {
	if err := s.validate.Struct(req); err != nil {
		return uuid.Nil, fmt.Errorf("invalid request: %w", err)
	}

	id, err := s.creators.Create(ctx, req.ChannelID, req.Name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create creator: %w", err)
	}

	if err := s.pipeline.Start(ctx, id); err != nil {
		return uuid.Nil, fmt.Errorf("start pipeline: %w", err)
	}
	return id, nil
}

func (s *CreatorService) Get(ctx context.Context, id uuid.UUID) (*entity.Creator, error) {
	return s.creators.GetByID(ctx, id)
}

func (s *CreatorService) Leaderboard(ctx context.Context, limit int) ([]entity.Creator, error) {
	return s.creators.List(ctx, limit)
}

func (s *CreatorService) Predictions(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Prediction, error) {
	if _, err := s.creators.GetByID(ctx, creatorID); err != nil {
		return nil, err
	}
	return s.predictions.ListByCreator(ctx, creatorID, limit)
}
