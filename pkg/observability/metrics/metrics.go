package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	tasksStarted            atomic.Int64
	envelopePublishFailures atomic.Int64
	tasksCompleted          atomic.Int64
	tasksFailed             atomic.Int64
	attemptsRetried         atomic.Int64
	deadLettered            atomic.Int64
	deadLetterFailures      atomic.Int64
	malformedEnvelopes      atomic.Int64
	duplicatesSkipped       atomic.Int64
)

type Counters struct {
	TasksStarted            int64
	EnvelopePublishFailures int64
	TasksCompleted          int64
	TasksFailed             int64
	AttemptsRetried         int64
	DeadLettered            int64
	DeadLetterFailures      int64
	MalformedEnvelopes      int64
	DuplicatesSkipped       int64
}

func TaskStarted() { tasksStarted.Add(1) }
func EnvelopePublishFailed() { envelopePublishFailures.Add(1) }
func TaskCompleted() { tasksCompleted.Add(1) }
func TaskFailed() { tasksFailed.Add(1) }
func AttemptRetried() { attemptsRetried.Add(1) }
func DeadLettered() { deadLettered.Add(1) }
func DeadLetterPublishFailed() { deadLetterFailures.Add(1) }
func MalformedEnvelope() { malformedEnvelopes.Add(1) }
func DuplicateSkipped() { duplicatesSkipped.Add(1) }

func Snapshot() Counters {
	return Counters{
		TasksStarted:            tasksStarted.Load(),
		EnvelopePublishFailures: envelopePublishFailures.Load(),
		TasksCompleted:          tasksCompleted.Load(),
		TasksFailed:             tasksFailed.Load(),
		AttemptsRetried:         attemptsRetried.Load(),
		DeadLettered:            deadLettered.Load(),
		DeadLetterFailures:      deadLetterFailures.Load(),
		MalformedEnvelopes:      malformedEnvelopes.Load(),
		DuplicatesSkipped:       duplicatesSkipped.Load(),
	}
}

type counter struct {
	name string
	help string
	val  int64
}

func WritePrometheus(w http.ResponseWriter) {
	c := Snapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, m := range []counter{
		{"moderation_tasks_started_total", "Moderation tasks created in pending state.", c.TasksStarted},
		{"moderation_envelope_publish_failures_total", "Tasks left pending because their envelope could not be published.", c.EnvelopePublishFailures},
		{"moderation_tasks_completed_total", "Tasks that reached the completed state.", c.TasksCompleted},
		{"moderation_tasks_failed_total", "Tasks that reached the failed state.", c.TasksFailed},
		{"moderation_attempts_retried_total", "Scoring attempts retried after a transient failure.", c.AttemptsRetried},
		{"moderation_dead_lettered_total", "Envelopes routed to the dead-letter topic.", c.DeadLettered},
		{"moderation_dead_letter_publish_failures_total", "Dead-letter records that could not be published.", c.DeadLetterFailures},
		{"moderation_malformed_envelopes_total", "Envelopes acknowledged and skipped as malformed.", c.MalformedEnvelopes},
		{"moderation_duplicates_skipped_total", "Redelivered envelopes skipped because the task was already final.", c.DuplicatesSkipped},
	} {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", m.name)
		fmt.Fprintf(w, "%s %d\n", m.name, m.val)
	}
}

func Handler(w http.ResponseWriter, _ *http.Request) {
	WritePrometheus(w)
}
