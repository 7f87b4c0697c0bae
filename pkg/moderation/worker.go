package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/admoderation/platform/pkg/common/kafka"
	"github.com/admoderation/platform/pkg/common/logger"
	"github.com/admoderation/platform/pkg/observability/metrics"
	"github.com/admoderation/platform/pkg/scoring"
	"github.com/sirupsen/logrus"
)

type Source interface {
	Fetch(ctx context.Context) (kafka.Delivery, error)
}

type Scorer interface {
	Score(ctx context.Context, itemID int64) scoring.Result
}

type TaskResults interface {
	TaskReader
	UpdateResult(ctx context.Context, taskID int64, res Result) error
}

type WorkerConfig struct {
	MaxRetries   int
	RetryDelay   time.Duration
	FetchBackoff time.Duration
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeDeadLettered
	outcomeSkipped
	// outcomeInterrupted leaves the envelope uncommitted for redelivery.
	outcomeInterrupted
)

// Worker consumes task envelopes one at a time. Each envelope is committed
// exactly once, after its outcome (status update or dead-letter) has been
// written; a crash before that means redelivery, not loss.
type Worker struct {
	source Source
	scorer Scorer
	tasks  TaskResults
	dlq    Publisher
	cfg    WorkerConfig
}

func NewWorker(source Source, scorer Scorer, tasks TaskResults, dlq Publisher, cfg WorkerConfig) *Worker {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = 500 * time.Millisecond
	}
	return &Worker{source: source, scorer: scorer, tasks: tasks, dlq: dlq, cfg: cfg}
}

// Run blocks until ctx is cancelled or the source is closed. Cancellation
// stops fetching; an envelope already in hand finishes its current attempt.
func (w *Worker) Run(ctx context.Context) error {
	logger.Log.WithFields(map[string]interface{}{
		"max_retries": w.cfg.MaxRetries,
		"retry_delay": w.cfg.RetryDelay.String(),
	}).Info("Waiting for messages...")

	for {
		d, err := w.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("moderation consumer closed: %w", err)
			}
			logger.Log.WithError(err).Warn("Failed to fetch message")
			if !sleep(ctx, w.cfg.FetchBackoff) {
				return nil
			}
			continue
		}
		w.handle(ctx, d)
	}
}

func (w *Worker) handle(ctx context.Context, d kafka.Delivery) outcome {
	// Store, scoring and channel calls must not be cut short by shutdown;
	// only the wait between attempts watches ctx.
	work := context.WithoutCancel(ctx)
	log := logger.Log.WithFields(logrus.Fields{
		"topic":     d.Message.Topic,
		"partition": d.Message.Partition,
		"offset":    d.Message.Offset,
	})

	env, err := ParseEnvelope(d.Message.Value)
	if err != nil {
		metrics.MalformedEnvelope()
		log.WithError(err).Error("Invalid message format, skipping")
		w.commit(work, d, log)
		return outcomeSkipped
	}
	log = log.WithFields(logrus.Fields{"task_id": env.TaskID, "item_id": env.ItemID})

	if w.alreadyFinal(work, env, log) {
		metrics.DuplicateSkipped()
		w.commit(work, d, log)
		return outcomeSkipped
	}

	log.Info("Processing task")
	out := w.process(ctx, work, env, d.Message.Value, log)
	if out == outcomeInterrupted {
		log.Warn("Shutdown during retry delay, leaving envelope uncommitted")
		return out
	}
	w.commit(work, d, log)
	return out
}

func (w *Worker) process(ctx, work context.Context, env Envelope, raw []byte, log *logrus.Entry) outcome {
	for attempt := 1; ; attempt++ {
		var cause error

		res := w.scorer.Score(work, env.ItemID)
		switch res.Kind {
		case scoring.Scored:
			err := w.tasks.UpdateResult(work, env.TaskID, Completed(res.Verdict.IsViolation, res.Verdict.Probability))
			switch {
			case err == nil:
				metrics.TaskCompleted()
				log.WithField("attempt", attempt).Info("Task completed")
				return outcomeCompleted
			case errors.Is(err, ErrTaskFinalized):
				log.WithError(err).Warn("Task was finalized with a different outcome, keeping it")
				return outcomeSkipped
			case errors.Is(err, ErrTaskNotFound):
				w.deadLetter(work, env, raw, err, attempt, log)
				return outcomeDeadLettered
			}
			cause = err
		case scoring.ItemMissing:
			log.WithError(res.Err).Error("Logical error (no retry)")
			w.deadLetter(work, env, raw, res.Err, attempt, log)
			return outcomeDeadLettered
		default:
			cause = res.Err
		}
		if cause == nil {
			cause = fmt.Errorf("scoring failed with %s", res.Kind)
		}

		log.WithError(cause).WithField("attempt", attempt).Warnf("Attempt %d/%d failed", attempt, w.cfg.MaxRetries)
		if attempt >= w.cfg.MaxRetries {
			w.deadLetter(work, env, raw, cause, attempt, log)
			return outcomeDeadLettered
		}

		metrics.AttemptRetried()
		log.Infof("Retrying in %s", w.cfg.RetryDelay)
		if !sleep(ctx, w.cfg.RetryDelay) {
			return outcomeInterrupted
		}
	}
}

// deadLetter marks the task failed (best effort) and publishes the
// dead-letter record. Neither failure blocks the commit that follows.
func (w *Worker) deadLetter(ctx context.Context, env Envelope, raw []byte, cause error, attempts int, log *logrus.Entry) {
	msg := cause.Error()
	log.WithError(cause).Error("Moving task to DLQ")

	if err := w.tasks.UpdateResult(ctx, env.TaskID, Failed(msg)); err != nil {
		log.WithError(err).Error("Failed to update status for dead-lettered task")
	} else {
		metrics.TaskFailed()
	}

	record := DeadLetter{
		OriginalMessage: json.RawMessage(raw),
		Error:           msg,
		Timestamp:       time.Now().UTC(),
		RetryCount:      attempts,
	}
	if err := w.dlq.PublishJSON(ctx, env.Key(), record); err != nil {
		metrics.DeadLetterPublishFailed()
		log.WithError(err).WithField("critical", true).Error("FAILED TO SEND TO DLQ")
		return
	}
	metrics.DeadLettered()
}

func (w *Worker) alreadyFinal(ctx context.Context, env Envelope, log *logrus.Entry) bool {
	task, err := w.tasks.GetByID(ctx, env.TaskID)
	if err != nil {
		if !errors.Is(err, ErrTaskNotFound) {
			log.WithError(err).Warn("Could not read task before scoring")
		}
		return false
	}
	if task.Status.Terminal() {
		log.WithField("status", task.Status).Info("Task already finalized, skipping redelivered envelope")
		return true
	}
	return false
}

func (w *Worker) commit(ctx context.Context, d kafka.Delivery, log *logrus.Entry) {
	if err := d.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit message")
	}
}

// sleep waits for d or until ctx is done, reporting whether it waited out.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
