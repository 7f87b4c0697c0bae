package moderation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrMalformedEnvelope = errors.New("malformed moderation envelope")

// Envelope is the task message carried on the moderation topic.
type Envelope struct {
	TaskID     int64     `json:"moderation_id"`
	ItemID     int64     `json:"item_id"`
	EnqueuedAt time.Time `json:"timestamp"`
}

func NewEnvelope(taskID, itemID int64) Envelope {
	return Envelope{TaskID: taskID, ItemID: itemID, EnqueuedAt: time.Now().UTC()}
}

// Key partitions envelopes by task so redeliveries of one task stay ordered.
func (e Envelope) Key() string {
	return strconv.FormatInt(e.TaskID, 10)
}

func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.TaskID <= 0 || env.ItemID <= 0 {
		return Envelope{}, fmt.Errorf("%w: moderation_id and item_id are required", ErrMalformedEnvelope)
	}
	return env, nil
}

// DeadLetter is published to the dead-letter topic when a task is given up
// on. OriginalMessage keeps the consumed bytes verbatim.
type DeadLetter struct {
	OriginalMessage json.RawMessage `json:"original_message"`
	Error           string          `json:"error"`
	Timestamp       time.Time       `json:"timestamp"`
	RetryCount      int             `json:"retry_count"`
}
