package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/repository/repotest"
	"github.com/medvault/medvault-api/pkg/logger"
	"github.com/medvault/medvault-api/pkg/metrics"
)

// One registration for the whole package; promauto panics on duplicates.
var testMetrics = metrics.NewMetrics("medvault", "workertest")

// fakeBroker records publishes and can be set to fail.
type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]interface{}
	fail      bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: make(map[string][]interface{})}
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return fmt.Errorf("broker unavailable")
	}
	b.published[channel] = append(b.published[channel], message)
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (b *fakeBroker) Close() error { return nil }

func pendingEvent(t *testing.T, repo *repotest.OutboxRepo, eventType string) *model.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"id": uuid.NewString()})
	require.NoError(t, err)
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    string(model.OutboxStatusPending),
	}
	require.NoError(t, repo.Create(context.Background(), event))
	return event
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	repo := repotest.NewOutboxRepo()
	broker := newFakeBroker()
	processor := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(nil), testMetrics)

	shared := pendingEvent(t, repo, model.EventFileShared)
	revoked := pendingEvent(t, repo, model.EventShareRevoked)

	require.NoError(t, processor.ProcessBatch(context.Background()))

	assert.Len(t, broker.published[model.EventFileShared], 1)
	assert.Len(t, broker.published[model.EventShareRevoked], 1)
	for _, e := range []*model.OutboxEvent{shared, revoked} {
		assert.Equal(t, string(model.OutboxStatusProcessed), e.Status)
		assert.NotNil(t, e.ProcessedAt)
	}

	remaining, err := repo.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestProcessBatchMarksFailedAfterRetries(t *testing.T) {
	repo := repotest.NewOutboxRepo()
	broker := newFakeBroker()
	broker.fail = true
	processor := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, logger.NewLogger(nil), testMetrics)

	event := pendingEvent(t, repo, model.EventKeyActivated)

	require.NoError(t, processor.ProcessBatch(context.Background()))

	assert.Equal(t, string(model.OutboxStatusFailed), event.Status)
	require.NotNil(t, event.ErrorMessage)
	assert.Contains(t, *event.ErrorMessage, "broker unavailable")

	// Failed events are not retried by the next batch.
	remaining, err := repo.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := retry(3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry(2, time.Millisecond, func() error {
		calls++
		return fmt.Errorf("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
