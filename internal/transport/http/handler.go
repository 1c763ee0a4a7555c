package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"prediction-tracker/internal/entity"
	"prediction-tracker/internal/repository/postgresql"
	"prediction-tracker/internal/service"
)

// PipelineController is the pipeline surface the HTTP layer needs
// (implementation: pipeline.Pipeline).
type PipelineController interface {
	Start(ctx context.Context, creatorID uuid.UUID) error
	Status(ctx context.Context, creatorID uuid.UUID) (*entity.PipelineStatus, error)
	ForceRestartAnalysis(ctx context.Context, creatorID uuid.UUID) error
}

type Handler struct {
	creators *service.CreatorService
	pipeline PipelineController
}

func NewHandler(creators *service.CreatorService, pipeline PipelineController) *Handler {
	return &Handler{creators: creators, pipeline: pipeline}
}

type registerCreatorDTO struct {
	ChannelID string `json:"channel_id"`
	Name      string `json:"name"`
}

type registerCreatorResp struct {
	ID string `json:"id"`
}

// RegisterCreator godoc
// @Summary Register a creator and start its analysis pipeline
// @Description Creates (or re-registers) a creator by channel id and kicks off the processing pipeline. Returns immediately; poll the pipeline status endpoint for progress.
// @Tags creators
// @Accept json
// @Produce json
// @Param request body registerCreatorDTO true "creator payload"
// @Success 201 {object} registerCreatorResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /creators [post]
func (h *Handler) RegisterCreator(w http.ResponseWriter, r *http.Request) {
	var dto registerCreatorDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := h.creators.Register(r.Context(), service.RegisterCreatorRequest{
		ChannelID: dto.ChannelID,
		Name:      dto.Name,
	})
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, registerCreatorResp{ID: id.String()})
}

// ListCreators godoc
// @Summary Leaderboard of creators ranked by prediction accuracy
// @Tags creators
// @Produce json
// @Param limit query int false "max creators to return (default 50)"
// @Success 200 {array} entity.Creator
// @Failure 500 {object} apiError
// @Router /creators [get]
func (h *Handler) ListCreators(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	creators, err := h.creators.Leaderboard(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "list creators failed")
		return
	}
	if creators == nil {
		creators = []entity.Creator{}
	}
	writeJSON(w, http.StatusOK, creators)
}

// GetCreator godoc
// @Summary Get a creator with its aggregate accuracy stats
// @Tags creators
// @Produce json
// @Param id path string true "creator id (uuid)"
// @Success 200 {object} entity.Creator
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /creators/{id} [get]
func (h *Handler) GetCreator(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}

	creator, err := h.creators.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "creator not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "get creator failed")
		return
	}
	writeJSON(w, http.StatusOK, creator)
}

// ListPredictions godoc
// @Summary List a creator's extracted predictions with verification results
// @Tags creators
// @Produce json
// @Param id path string true "creator id (uuid)"
// @Param limit query int false "max predictions to return (default 100)"
// @Success 200 {array} entity.Prediction
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /creators/{id}/predictions [get]
func (h *Handler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 100)

	preds, err := h.creators.Predictions(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "creator not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "list predictions failed")
		return
	}
	if preds == nil {
		preds = []entity.Prediction{}
	}
	writeJSON(w, http.StatusOK, preds)
}

// GetPipelineStatus godoc
// @Summary Get pipeline progress for a creator
// @Description Returns the cached progress document, or an idle status when no pipeline ran recently.
// @Tags pipeline
// @Produce json
// @Param id path string true "creator id (uuid)"
// @Success 200 {object} entity.PipelineStatus
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /creators/{id}/pipeline [get]
func (h *Handler) GetPipelineStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}

	st, err := h.pipeline.Status(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "get pipeline status failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// StartPipeline godoc
// @Summary Start (or re-run) the pipeline for a creator
// @Tags pipeline
// @Produce json
// @Param id path string true "creator id (uuid)"
// @Success 202 {object} entity.PipelineStatus
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /creators/{id}/pipeline [post]
func (h *Handler) StartPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}

	if err := h.pipeline.Start(r.Context(), id); err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "creator not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	st, err := h.pipeline.Status(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "get pipeline status failed")
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// RestartAnalysis godoc
// @Summary Force-restart the analysis phase for a stuck pipeline
// @Description Administrative escape hatch: seals transcript-less videos and re-enqueues analysis, same repair the recovery sweep applies.
// @Tags pipeline
// @Produce json
// @Param id path string true "creator id (uuid)"
// @Success 202 {object} entity.PipelineStatus
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /creators/{id}/pipeline/restart-analysis [post]
func (h *Handler) RestartAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := creatorID(w, r)
	if !ok {
		return
	}

	if err := h.pipeline.ForceRestartAnalysis(r.Context(), id); err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "creator not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	st, err := h.pipeline.Status(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "get pipeline status failed")
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func creatorID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
