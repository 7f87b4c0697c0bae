package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/admoderation/platform/pkg/advertisement"
	"github.com/admoderation/platform/pkg/common/logger"
	"github.com/admoderation/platform/pkg/scoring"
	"github.com/gorilla/mux"
)

type AdvertisementCloser interface {
	Close(ctx context.Context, itemID int64) error
}

type Predictor interface {
	Predict(ctx context.Context, itemID int64) (scoring.Verdict, error)
}

type AdvertisementHandler struct {
	ads       AdvertisementCloser
	predictor Predictor
}

type CloseResponse struct {
	Message string `json:"message"`
	ItemID  int64  `json:"item_id"`
}

func NewAdvertisementHandler(ads AdvertisementCloser, predictor Predictor) *AdvertisementHandler {
	return &AdvertisementHandler{ads: ads, predictor: predictor}
}

func (h *AdvertisementHandler) Register(r *mux.Router) {
	r.HandleFunc("/advertisement/close", h.handleClose).Methods(http.MethodPost)
	r.HandleFunc("/advertisement/simple_predict", h.handleSimplePredict).Methods(http.MethodPost)
}

func (h *AdvertisementHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	itemID, err := decodeItemID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	err = h.ads.Close(r.Context(), itemID)
	switch {
	case err == nil:
		logger.Log.WithField("item_id", itemID).Info("Advertisement closed")
		writeJSON(w, http.StatusOK, CloseResponse{Message: "Advertisement closed", ItemID: itemID})
	case errors.Is(err, advertisement.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Advertisement with id %d not found", itemID))
	default:
		writeInternalError(w, err, "failed to close advertisement")
	}
}

func (h *AdvertisementHandler) handleSimplePredict(w http.ResponseWriter, r *http.Request) {
	itemID, err := decodeItemID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	verdict, err := h.predictor.Predict(r.Context(), itemID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verdict)
	case errors.Is(err, advertisement.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Advertisement with id %d not found", itemID))
	case errors.Is(err, scoring.ErrModelUnavailable):
		logger.Log.WithError(err).Warn("prediction requested without a usable model")
		writeError(w, http.StatusServiceUnavailable, "Model is not available")
	default:
		writeInternalError(w, err, "failed to predict")
	}
}
