package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/railfleet/sms/internal/domain"
)

func pendingMessage(id, eventID, eventType, payload string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: "shopping_event",
		AggregateID:   eventID,
		EventType:     eventType,
		Payload:       []byte(payload),
	}
}

func newTestWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, extra ...Option) *Worker {
	options := append([]Option{
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	}, extra...)
	return NewWorker(repo, publisher, options...)
}

func TestWorker_ProcessOnce(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name             string
		publisher        *stubPublisher
		wantPublishCalls int
		wantSent         int
		wantFailed       int
		wantDLQ          int
	}{
		{
			name:             "first attempt succeeds",
			publisher:        &stubPublisher{},
			wantPublishCalls: 1,
			wantSent:         1,
		},
		{
			name: "succeeds after transient errors",
			publisher: &stubPublisher{
				sequenceErrors: []error{
					errors.New("attempt 1"),
					errors.New("attempt 2"),
					nil,
				},
			},
			wantPublishCalls: 3,
			wantSent:         1,
		},
		{
			name:             "exhausts retries, marks failed and goes to DLQ",
			publisher:        &stubPublisher{err: errors.New("publish failed")},
			wantPublishCalls: 3,
			wantFailed:       1,
			wantDLQ:          1,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := &stubOutboxRepo{
				pending: []domain.OutboxMessage{
					pendingMessage("msg-1", "event-1", "lifecycle.state.changed", `{"from":"EVENT","to":"PACKET"}`),
				},
			}
			dlqPublisher := &stubPublisher{}

			worker := newTestWorker(repo, tc.publisher, WithDLQPublisher(dlqPublisher))
			worker.ProcessOnce(context.Background())

			if got := tc.publisher.calls(); got != tc.wantPublishCalls {
				t.Errorf("publish calls = %d, want %d", got, tc.wantPublishCalls)
			}
			if got := len(repo.sentIDs); got != tc.wantSent {
				t.Errorf("sent marks = %d, want %d", got, tc.wantSent)
			}
			if got := len(repo.failedIDs); got != tc.wantFailed {
				t.Errorf("failed marks = %d, want %d", got, tc.wantFailed)
			}
			if got := dlqPublisher.calls(); got != tc.wantDLQ {
				t.Errorf("DLQ publishes = %d, want %d", got, tc.wantDLQ)
			}
			if tc.wantFailed > 0 && repo.failedIDs[0] != "msg-1" {
				t.Errorf("failed id = %s, want msg-1", repo.failedIDs[0])
			}
			if tc.wantSent > 0 && repo.sentIDs[0] != "msg-1" {
				t.Errorf("sent id = %s, want msg-1", repo.sentIDs[0])
			}
		})
	}
}

func TestWorker_ProcessOnce_RespectsBatchSize(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{
		pending: []domain.OutboxMessage{
			pendingMessage("msg-1", "event-1", "lifecycle.event.created", `{"source":"triage"}`),
			pendingMessage("msg-2", "event-2", "lifecycle.state.changed", `{"from":"EVENT","to":"PACKET"}`),
			pendingMessage("msg-3", "event-3", "lifecycle.event.closed", `{"disposition":"to_storage"}`),
		},
	}
	publisher := &stubPublisher{}

	worker := newTestWorker(repo, publisher, WithBatchSize(2))
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 2 {
		t.Fatalf("publish calls = %d, want 2", got)
	}
	if got := len(repo.sentIDs); got != 2 {
		t.Fatalf("sent marks = %d, want 2", got)
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{}
	publisher := &stubPublisher{}

	worker := NewWorker(
		repo,
		publisher,
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

type stubOutboxRepo struct {
	pending   []domain.OutboxMessage
	sentIDs   []string
	failedIDs []string
}

var _ domain.OutboxRepository = (*stubOutboxRepo)(nil)

func (s *stubOutboxRepo) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}

func (s *stubOutboxRepo) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubOutboxRepo) Stats() (domain.OutboxStats, error) {
	stats := domain.OutboxStats{
		PendingCount: len(s.pending),
	}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubOutboxRepo) MarkSent(id string) error {
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(id string) error {
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	callCount      int
}

var _ domain.OutboxPublisher = (*stubPublisher)(nil)

func (s *stubPublisher) Publish(_ domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	if len(s.sequenceErrors) > 0 {
		err := s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
		return err
	}

	return s.err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
