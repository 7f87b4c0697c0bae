package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/admoderation/platform/pkg/common/kafka"
	"github.com/admoderation/platform/pkg/scoring"
	kafkago "github.com/segmentio/kafka-go"
)

// memStore mirrors GormStore's transition rules in memory.
type memStore struct {
	mu        sync.Mutex
	next      int64
	tasks     map[int64]Task
	updates   []Result
	getCalls  int
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[int64]Task)}
}

func (s *memStore) CreatePending(_ context.Context, itemID int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	task := Task{ID: s.next, ItemID: itemID, Status: StatusPending, CreatedAt: time.Now().UTC()}
	s.tasks[task.ID] = task
	return &task, nil
}

func (s *memStore) GetByID(_ context.Context, taskID int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}

func (s *memStore) UpdateResult(_ context.Context, taskID int64, res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, res)
	if s.updateErr != nil {
		return s.updateErr
	}
	if err := res.Validate(); err != nil {
		return err
	}
	task, ok := s.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if task.Status.Terminal() {
		if task.Matches(res) {
			return nil
		}
		return ErrTaskFinalized
	}
	now := time.Now().UTC()
	task.Status = res.Status
	task.IsViolation = res.IsViolation
	task.Probability = res.Probability
	task.ErrorMessage = res.ErrorMessage
	task.ProcessedAt = &now
	s.tasks[taskID] = task
	return nil
}

func (s *memStore) TaskIDsByItem(_ context.Context, itemID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, task := range s.tasks {
		if task.ItemID == itemID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type published struct {
	key   string
	value []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *fakePublisher) PublishJSON(_ context.Context, key string, v interface{}) error {
	if p.err != nil {
		return p.err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.messages = append(p.messages, published{key: key, value: raw})
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type fakeItems map[int64]bool

func (f fakeItems) Exists(_ context.Context, itemID int64) (bool, error) {
	return f[itemID], nil
}

type erroringItems struct{}

func (erroringItems) Exists(context.Context, int64) (bool, error) {
	return false, errors.New("connection reset by peer")
}

// fakeScorer replays results in order and repeats the last one.
type fakeScorer struct {
	mu      sync.Mutex
	results []scoring.Result
	calls   int
	onCall  func(call int)
}

func (f *fakeScorer) Score(_ context.Context, _ int64) scoring.Result {
	f.mu.Lock()
	f.calls++
	call := f.calls
	idx := call - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	res := f.results[idx]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return res
}

func (f *fakeScorer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func scored(violation bool, p float64) scoring.Result {
	return scoring.Result{Kind: scoring.Scored, Verdict: scoring.Verdict{IsViolation: violation, Probability: p}}
}

func transient(msg string) scoring.Result {
	return scoring.Result{Kind: scoring.Transient, Err: errors.New(msg)}
}

func itemMissing(msg string) scoring.Result {
	return scoring.Result{Kind: scoring.ItemMissing, Err: errors.New(msg)}
}

type commitCounter struct {
	mu    sync.Mutex
	count int
}

func (c *commitCounter) commit(context.Context) error {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return nil
}

func (c *commitCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func newDelivery(value []byte, commits *commitCounter) kafka.Delivery {
	return kafka.NewDelivery(kafkago.Message{Topic: "moderation", Value: value}, commits.commit)
}

func envelopeBytes(taskID, itemID int64) []byte {
	raw, _ := json.Marshal(NewEnvelope(taskID, itemID))
	return raw
}

// sliceSource hands out deliveries, then cancels the run.
type sliceSource struct {
	mu         sync.Mutex
	deliveries []kafka.Delivery
	cancel     context.CancelFunc
	finalErr   error
}

func (s *sliceSource) Fetch(ctx context.Context) (kafka.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.deliveries) == 0 {
		if s.finalErr != nil {
			return kafka.Delivery{}, s.finalErr
		}
		s.cancel()
		return kafka.Delivery{}, ctx.Err()
	}
	d := s.deliveries[0]
	s.deliveries = s.deliveries[1:]
	return d, nil
}
