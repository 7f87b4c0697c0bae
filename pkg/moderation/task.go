package moderation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/admoderation/platform/pkg/advertisement"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrTaskNotFound  = errors.New("moderation task not found")
	ErrTaskFinalized = errors.New("moderation task already finalized")
	ErrInvalidResult = errors.New("invalid moderation result")
)

// Task is one moderation request lifecycle, stored in moderation_results.
type Task struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	ItemID       int64      `json:"item_id" gorm:"column:item_id;not null;index"`
	Status       Status     `json:"status" gorm:"column:status;type:varchar(20);not null;check:chk_moderation_results_status,status IN ('pending','completed','failed')"`
	IsViolation  *bool      `json:"is_violation" gorm:"column:is_violation"`
	Probability  *float64   `json:"probability" gorm:"column:probability"`
	ErrorMessage *string    `json:"error_message" gorm:"column:error_message;type:text"`
	CreatedAt    time.Time  `json:"created_at" gorm:"column:created_at;not null"`
	ProcessedAt  *time.Time `json:"processed_at" gorm:"column:processed_at"`

	Advertisement *advertisement.Advertisement `json:"-" gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
}

func (Task) TableName() string {
	return "moderation_results"
}

// Result is the terminal update applied to a pending task.
type Result struct {
	Status       Status
	IsViolation  *bool
	Probability  *float64
	ErrorMessage *string
}

func Completed(isViolation bool, probability float64) Result {
	return Result{Status: StatusCompleted, IsViolation: &isViolation, Probability: &probability}
}

func Failed(message string) Result {
	return Result{Status: StatusFailed, ErrorMessage: &message}
}

func (r Result) Validate() error {
	switch r.Status {
	case StatusCompleted:
		if r.IsViolation == nil || r.Probability == nil {
			return fmt.Errorf("%w: completed result needs is_violation and probability", ErrInvalidResult)
		}
		if math.IsNaN(*r.Probability) || *r.Probability < 0 || *r.Probability > 1 {
			return fmt.Errorf("%w: probability %v outside [0,1]", ErrInvalidResult, *r.Probability)
		}
		if r.ErrorMessage != nil {
			return fmt.Errorf("%w: completed result cannot carry an error message", ErrInvalidResult)
		}
	case StatusFailed:
		if r.ErrorMessage == nil {
			return fmt.Errorf("%w: failed result needs an error message", ErrInvalidResult)
		}
		if r.IsViolation != nil || r.Probability != nil {
			return fmt.Errorf("%w: failed result cannot carry a verdict", ErrInvalidResult)
		}
	default:
		return fmt.Errorf("%w: status %q is not terminal", ErrInvalidResult, r.Status)
	}
	return nil
}

// Matches reports whether res carries exactly the terminal outcome already
// stored on t.
func (t *Task) Matches(res Result) bool {
	return t.Status == res.Status &&
		equalPtr(t.IsViolation, res.IsViolation) &&
		equalPtr(t.Probability, res.Probability) &&
		equalPtr(t.ErrorMessage, res.ErrorMessage)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
