package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/admoderation/platform/pkg/advertisement"
	"github.com/admoderation/platform/pkg/moderation"
	"github.com/admoderation/platform/pkg/scoring"
	"github.com/gorilla/mux"
)

type stubModeration struct {
	started []int64
	tasks   map[int64]*moderation.Task
	err     error
}

func (s *stubModeration) StartModeration(_ context.Context, itemID int64) (*moderation.StartResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if itemID == 999 {
		return nil, fmt.Errorf("advertisement %d: %w", itemID, advertisement.ErrNotFound)
	}
	s.started = append(s.started, itemID)
	return &moderation.StartResult{TaskID: 7, Status: moderation.StatusPending, Message: "Moderation request accepted"}, nil
}

func (s *stubModeration) GetStatus(_ context.Context, taskID int64) (*moderation.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, moderation.ErrTaskNotFound
	}
	return task, nil
}

type stubAdvertisements struct {
	closed  []int64
	verdict scoring.Verdict
	err     error
}

func (s *stubAdvertisements) Close(_ context.Context, itemID int64) error {
	if s.err != nil {
		return s.err
	}
	if itemID == 999 {
		return advertisement.ErrNotFound
	}
	s.closed = append(s.closed, itemID)
	return nil
}

func (s *stubAdvertisements) Predict(_ context.Context, itemID int64) (scoring.Verdict, error) {
	if s.err != nil {
		return scoring.Verdict{}, s.err
	}
	if itemID == 999 {
		return scoring.Verdict{}, advertisement.ErrNotFound
	}
	return s.verdict, nil
}

func newRouter(mod *stubModeration, ads *stubAdvertisements) *mux.Router {
	r := mux.NewRouter()
	NewModerationHandler(mod).Register(r)
	NewAdvertisementHandler(ads, ads).Register(r)
	RegisterOperational(r, "test")
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, payload
}

func TestAsyncPredictAccepted(t *testing.T) {
	mod := &stubModeration{}
	rec, body := do(t, newRouter(mod, &stubAdvertisements{}), http.MethodPost, "/moderation/async_predict", `{"item_id": 42}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["task_id"].(float64) != 7 || body["status"] != "pending" || body["message"] != "Moderation request accepted" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(mod.started) != 1 || mod.started[0] != 42 {
		t.Fatalf("unexpected started items %v", mod.started)
	}
}

func TestAsyncPredictUnknownItem(t *testing.T) {
	rec, body := do(t, newRouter(&stubModeration{}, &stubAdvertisements{}), http.MethodPost, "/moderation/async_predict", `{"item_id": 999}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body["detail"] != "Advertisement with id 999 not found" {
		t.Fatalf("unexpected detail %v", body["detail"])
	}
}

func TestAsyncPredictValidation(t *testing.T) {
	mod := &stubModeration{}
	router := newRouter(mod, &stubAdvertisements{})

	for _, payload := range []string{``, `{}`, `{"item_id": 0}`, `{"item_id": -3}`, `{"item_id": "42"}`, `{"item_id": 4.5}`, `not json`} {
		rec, body := do(t, router, http.MethodPost, "/moderation/async_predict", payload)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%q: expected 422, got %d", payload, rec.Code)
		}
		if body["detail"] == "" || body["detail"] == nil {
			t.Fatalf("%q: expected a detail message", payload)
		}
	}
	if len(mod.started) != 0 {
		t.Fatalf("invalid requests must not reach the service: %v", mod.started)
	}
}

func TestAsyncPredictInternalError(t *testing.T) {
	mod := &stubModeration{err: errors.New("connection refused")}
	rec, body := do(t, newRouter(mod, &stubAdvertisements{}), http.MethodPost, "/moderation/async_predict", `{"item_id": 1}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["detail"] != "Internal server error" {
		t.Fatalf("internal details must not leak: %v", body)
	}
}

func TestModerationResult(t *testing.T) {
	violation, probability := true, 0.92
	mod := &stubModeration{tasks: map[int64]*moderation.Task{
		1: {ID: 1, ItemID: 42, Status: moderation.StatusPending},
		2: {ID: 2, ItemID: 42, Status: moderation.StatusCompleted, IsViolation: &violation, Probability: &probability},
	}}
	router := newRouter(mod, &stubAdvertisements{})

	rec, body := do(t, router, http.MethodGet, "/moderation/moderation_result/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "pending" || body["is_violation"] != nil || body["probability"] != nil {
		t.Fatalf("unexpected pending body %v", body)
	}
	if _, ok := body["is_violation"]; !ok {
		t.Fatal("expected is_violation to be present as null")
	}

	rec, body = do(t, router, http.MethodGet, "/moderation/moderation_result/2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["task_id"].(float64) != 2 || body["status"] != "completed" || body["is_violation"] != true || body["probability"].(float64) != 0.92 {
		t.Fatalf("unexpected completed body %v", body)
	}
}

func TestModerationResultErrors(t *testing.T) {
	router := newRouter(&stubModeration{tasks: map[int64]*moderation.Task{}}, &stubAdvertisements{})

	if rec, _ := do(t, router, http.MethodGet, "/moderation/moderation_result/5", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	for _, id := range []string{"0", "-1", "abc"} {
		if rec, _ := do(t, router, http.MethodGet, "/moderation/moderation_result/"+id, ""); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", id, rec.Code)
		}
	}
}

func TestCloseAdvertisement(t *testing.T) {
	ads := &stubAdvertisements{}
	router := newRouter(&stubModeration{}, ads)

	rec, body := do(t, router, http.MethodPost, "/advertisement/close", `{"item_id": 12}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["item_id"].(float64) != 12 || body["message"] == nil {
		t.Fatalf("unexpected body %v", body)
	}
	if len(ads.closed) != 1 || ads.closed[0] != 12 {
		t.Fatalf("unexpected closed items %v", ads.closed)
	}

	if rec, _ := do(t, router, http.MethodPost, "/advertisement/close", `{"item_id": 999}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec, _ := do(t, router, http.MethodPost, "/advertisement/close", `{"item_id": 0}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestSimplePredict(t *testing.T) {
	ads := &stubAdvertisements{verdict: scoring.Verdict{IsViolation: true, Probability: 0.81}}
	router := newRouter(&stubModeration{}, ads)

	rec, body := do(t, router, http.MethodPost, "/advertisement/simple_predict", `{"item_id": 3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["is_violation"] != true || body["probability"].(float64) != 0.81 {
		t.Fatalf("unexpected body %v", body)
	}

	if rec, _ := do(t, router, http.MethodPost, "/advertisement/simple_predict", `{"item_id": 999}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec, _ := do(t, router, http.MethodPost, "/advertisement/simple_predict", `{}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestSimplePredictModelUnavailable(t *testing.T) {
	ads := &stubAdvertisements{err: fmt.Errorf("load model: %w", scoring.ErrModelUnavailable)}
	rec, _ := do(t, newRouter(&stubModeration{}, ads), http.MethodPost, "/advertisement/simple_predict", `{"item_id": 3}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	router := newRouter(&stubModeration{}, &stubAdvertisements{})

	rec, body := do(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("unexpected health response %d %v", rec.Code, body)
	}

	rec, _ = do(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "moderation_tasks_started_total") {
		t.Fatalf("unexpected metrics response %d %s", rec.Code, rec.Body.String())
	}
}

func TestValidationErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("request: %w", ValidationError{reason: errMissingItemID})
	if !IsValidationError(err) || !errors.Is(err, errMissingItemID) {
		t.Fatalf("expected wrapped validation error, got %v", err)
	}
}

func TestRequestDecodersReturnValidationErrors(t *testing.T) {
	for _, body := range []string{``, `{`, `{"item_id": "7"}`, `{}`, `{"item_id": null}`, `{"item_id": -1}`} {
		req := httptest.NewRequest(http.MethodPost, "/moderation/async_predict", strings.NewReader(body))
		if _, err := decodeItemID(req); !IsValidationError(err) {
			t.Errorf("body %q: expected validation error, got %v", body, err)
		}
	}
	for _, raw := range []string{"", "abc", "0", "-3", "99999999999999999999"} {
		if _, err := parsePathID(raw, "task_id"); !IsValidationError(err) {
			t.Errorf("path %q: expected validation error, got %v", raw, err)
		}
	}
}

func TestWriteRequestErrorStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRequestError(rec, ValidationError{reason: errMissingItemID})
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "item_id is required") {
		t.Fatalf("unexpected validation response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	writeRequestError(rec, errors.New("unexpected EOF from proxy"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for non-validation error, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "proxy") {
		t.Fatalf("internal error detail leaked: %s", rec.Body.String())
	}
}
