package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/verdandi/internal/email"
	"github.com/dukerupert/verdandi/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu        sync.Mutex
	pending   []jobs.Job
	completed []string
	failed    map[string]string
	ClaimErr  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, p jobs.EnqueueParams) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := p.JobType
	q.pending = append(q.pending, jobs.Job{ID: id, JobType: p.JobType, Queue: p.Queue, Payload: p.Payload, TimeoutSeconds: p.TimeoutSeconds})
	return id, nil
}

func (q *fakeQueue) ClaimNext(ctx context.Context, workerID, queue string) (*jobs.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ClaimErr != nil {
		return nil, q.ClaimErr
	}
	if len(q.pending) == 0 {
		return nil, nil
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	j.Attempts++
	return &j, nil
}

func (q *fakeQueue) Complete(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, id, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failed == nil {
		q.failed = map[string]string{}
	}
	q.failed[id] = message
	return nil
}

func (q *fakeQueue) DeleteFinished(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type countingSender struct {
	mu  sync.Mutex
	n   int
	err error
}

func (s *countingSender) Send(ctx context.Context, e *email.Email) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.n++
	return "ok", nil
}

func newTestWorker(t *testing.T, q *fakeQueue, sender email.Sender) *Worker {
	t.Helper()
	svc, err := email.NewService(sender, "orders@verdandi.local", "Verdandi")
	require.NoError(t, err)
	return NewWorker(q, svc, Config{WorkerID: "test", PollInterval: 5 * time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func paidEmail() email.OrderPaidEmail {
	return email.OrderPaidEmail{Order: email.OrderSummary{OrderNumber: 3, Email: "ada@example.com", CustomerName: "Ada"}}
}

func TestWorker_ProcessesEmailJob(t *testing.T) {
	q := &fakeQueue{}
	sender := &countingSender{}
	w := newTestWorker(t, q, sender)
	require.NoError(t, jobs.EnqueueOrderPaidEmail(context.Background(), q, paidEmail()))

	assert.True(t, w.claimAndProcess(context.Background()))
	assert.Equal(t, []string{jobs.JobTypeOrderPaid}, q.completed)
	assert.Equal(t, 1, sender.n)

	assert.False(t, w.claimAndProcess(context.Background()), "queue is empty")
}

func TestWorker_FailedJobIsRecorded(t *testing.T) {
	q := &fakeQueue{}
	w := newTestWorker(t, q, &countingSender{err: errors.New("smtp down")})
	require.NoError(t, jobs.EnqueueOrderPaidEmail(context.Background(), q, paidEmail()))

	w.claimAndProcess(context.Background())
	assert.Empty(t, q.completed)
	assert.Contains(t, q.failed[jobs.JobTypeOrderPaid], "smtp down")
}

func TestWorker_UnknownJobType(t *testing.T) {
	q := &fakeQueue{pending: []jobs.Job{{ID: "j-1", JobType: "report:weekly"}}}
	w := newTestWorker(t, q, &countingSender{})

	w.claimAndProcess(context.Background())
	assert.Contains(t, q.failed["j-1"], "unknown job type")
}

func TestWorker_ClaimError(t *testing.T) {
	q := &fakeQueue{ClaimErr: errors.New("connection refused")}
	w := newTestWorker(t, q, &countingSender{})
	assert.False(t, w.claimAndProcess(context.Background()))
}

func TestWorker_StartStopsOnCancel(t *testing.T) {
	q := &fakeQueue{}
	sender := &countingSender{}
	w := newTestWorker(t, q, sender)
	require.NoError(t, jobs.EnqueueOrderPaidEmail(context.Background(), q, paidEmail()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.completed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
