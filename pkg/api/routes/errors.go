package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/admoderation/platform/pkg/common/logger"
)

var (
	errMissingItemID = errors.New("item_id is required")
	errInvalidID     = errors.New("identifier must be a positive integer")
)

// ValidationError marks a request rejected at the boundary. It is answered
// with 422 and never reaches the pipeline.
type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type itemRequest struct {
	ItemID *int64 `json:"item_id"`
}

func decodeItemID(r *http.Request) (int64, error) {
	defer r.Body.Close()

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, ValidationError{reason: fmt.Errorf("invalid request body: %w", err)}
	}
	if req.ItemID == nil {
		return 0, ValidationError{reason: errMissingItemID}
	}
	if *req.ItemID <= 0 {
		return 0, ValidationError{reason: fmt.Errorf("item_id: %w", errInvalidID)}
	}
	return *req.ItemID, nil
}

func parsePathID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ValidationError{reason: fmt.Errorf("%s: %w", name, errInvalidID)}
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeRequestError answers 422 for validation failures and 500 for anything
// else that went wrong while reading the request.
func writeRequestError(w http.ResponseWriter, err error) {
	if IsValidationError(err) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeInternalError(w, err, "failed to read request")
}

func writeInternalError(w http.ResponseWriter, err error, msg string) {
	logger.Log.WithError(err).Error(msg)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
