package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/admoderation/platform/pkg/advertisement"
	"github.com/admoderation/platform/pkg/moderation"
	"github.com/gorilla/mux"
)

type ModerationService interface {
	StartModeration(ctx context.Context, itemID int64) (*moderation.StartResult, error)
	GetStatus(ctx context.Context, taskID int64) (*moderation.Task, error)
}

type ModerationHandler struct {
	service ModerationService
}

// ModerationResultResponse leaves is_violation and probability null until
// the task completes.
type ModerationResultResponse struct {
	TaskID      int64             `json:"task_id"`
	Status      moderation.Status `json:"status"`
	IsViolation *bool             `json:"is_violation"`
	Probability *float64          `json:"probability"`
}

func NewModerationHandler(service ModerationService) *ModerationHandler {
	return &ModerationHandler{service: service}
}

func (h *ModerationHandler) Register(r *mux.Router) {
	r.HandleFunc("/moderation/async_predict", h.handleAsyncPredict).Methods(http.MethodPost)
	r.HandleFunc("/moderation/moderation_result/{task_id}", h.handleResult).Methods(http.MethodGet)
}

func (h *ModerationHandler) handleAsyncPredict(w http.ResponseWriter, r *http.Request) {
	itemID, err := decodeItemID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	res, err := h.service.StartModeration(r.Context(), itemID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, res)
	case errors.Is(err, advertisement.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Advertisement with id %d not found", itemID))
	default:
		writeInternalError(w, err, "failed to start moderation")
	}
}

func (h *ModerationHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	taskID, err := parsePathID(mux.Vars(r)["task_id"], "task_id")
	if err != nil {
		writeRequestError(w, err)
		return
	}

	task, err := h.service.GetStatus(r.Context(), taskID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ModerationResultResponse{
			TaskID:      task.ID,
			Status:      task.Status,
			IsViolation: task.IsViolation,
			Probability: task.Probability,
		})
	case errors.Is(err, moderation.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Moderation result with id %d not found", taskID))
	default:
		writeInternalError(w, err, "failed to load moderation result")
	}
}
