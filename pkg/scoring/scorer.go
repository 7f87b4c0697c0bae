package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/admoderation/platform/pkg/advertisement"
	"github.com/admoderation/platform/pkg/common/logger"
)

var ErrModelUnavailable = errors.New("moderation model unavailable")

// Kind classifies a scoring attempt. The worker dispatches on it instead of
// inspecting error types.
type Kind int

const (
	// Scored carries a verdict.
	Scored Kind = iota
	// ItemMissing means the advertisement does not exist; retrying cannot help.
	ItemMissing
	// Transient covers store, cache and model failures worth retrying.
	Transient
)

func (k Kind) String() string {
	switch k {
	case Scored:
		return "scored"
	case ItemMissing:
		return "item_missing"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Verdict struct {
	IsViolation bool    `json:"is_violation"`
	Probability float64 `json:"probability"`
}

type Result struct {
	Kind    Kind
	Verdict Verdict
	Err     error
}

type ItemSource interface {
	GetWithSeller(ctx context.Context, itemID int64) (*advertisement.Snapshot, error)
}

type ModelSource interface {
	Model() (*Model, error)
}

type Scorer struct {
	items  ItemSource
	models ModelSource
}

func NewScorer(items ItemSource, models ModelSource) *Scorer {
	return &Scorer{items: items, models: models}
}

// Score looks the item up and evaluates it, folding every failure into a
// Result kind.
func (s *Scorer) Score(ctx context.Context, itemID int64) Result {
	verdict, err := s.Predict(ctx, itemID)
	switch {
	case err == nil:
		return Result{Kind: Scored, Verdict: verdict}
	case errors.Is(err, advertisement.ErrNotFound):
		return Result{Kind: ItemMissing, Err: fmt.Errorf("advertisement with id %d not found", itemID)}
	default:
		return Result{Kind: Transient, Err: err}
	}
}

// Predict is the synchronous path: it returns advertisement.ErrNotFound or
// ErrModelUnavailable for the caller to map.
func (s *Scorer) Predict(ctx context.Context, itemID int64) (Verdict, error) {
	ad, err := s.items.GetWithSeller(ctx, itemID)
	if err != nil {
		return Verdict{}, err
	}
	return s.Evaluate(*ad)
}

func (s *Scorer) Evaluate(ad advertisement.Snapshot) (Verdict, error) {
	model, err := s.models.Model()
	if err != nil {
		return Verdict{}, err
	}

	proba, err := model.Probability(Features(ad))
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	verdict := Verdict{IsViolation: proba > 0.5, Probability: proba}
	logger.Log.WithFields(map[string]interface{}{
		"item_id":      ad.ItemID,
		"seller_id":    ad.SellerID,
		"is_violation": verdict.IsViolation,
		"probability":  proba,
	}).Info("Prediction completed")
	return verdict, nil
}
