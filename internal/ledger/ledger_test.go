package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/repository"
)

func newTestLedger(t *testing.T) (*Ledger, *repository.InboundEventRepository) {
	t.Helper()
	db, err := database.OpenForTest()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := repository.NewInboundEventRepository(db)
	return New(repo), repo
}

func TestBeginProcessingFirstDelivery(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	begin, err := l.BeginProcessing(ctx, "msg-1", []byte("payload"))
	require.NoError(t, err)
	assert.False(t, begin.IsDuplicate)
	assert.NotZero(t, begin.EventID)
}

func TestBeginProcessingRequiresMessageID(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.BeginProcessing(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestDuplicateAfterProcessed(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	begin, err := l.BeginProcessing(ctx, "msg-1", nil)
	require.NoError(t, err)
	require.NoError(t, l.MarkProcessed(ctx, begin.EventID, 42, "msg-1"))

	again, err := l.BeginProcessing(ctx, "msg-1", nil)
	require.NoError(t, err)
	assert.True(t, again.IsDuplicate)
	assert.Equal(t, int64(42), again.TicketID)
}

func TestInterruptedAttemptIsRetryable(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	begin, err := l.BeginProcessing(ctx, "msg-1", nil)
	require.NoError(t, err)
	l.MarkFailed(ctx, begin.EventID, errors.New("downstream unavailable"))

	// A failed attempt does not consume the idempotency key: the retry gets
	// the same ledger row back and processing runs from scratch.
	retry, err := l.BeginProcessing(ctx, "msg-1", nil)
	require.NoError(t, err)
	assert.False(t, retry.IsDuplicate)
	assert.Equal(t, begin.EventID, retry.EventID)
}

func TestMarkFailedRecordsError(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	begin, err := l.BeginProcessing(ctx, "msg-1", nil)
	require.NoError(t, err)
	l.MarkFailed(ctx, begin.EventID, errors.New("boom"))

	event, err := repo.GetByProviderMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.False(t, event.Processed)
	require.NotNil(t, event.Error)
	assert.Equal(t, "boom", *event.Error)
}

func TestMarkProcessedClearsError(t *testing.T) {
	l, repo := newTestLedger(t)
	ctx := context.Background()

	begin, err := l.BeginProcessing(ctx, "msg-1", nil)
	require.NoError(t, err)
	l.MarkFailed(ctx, begin.EventID, errors.New("first attempt"))
	require.NoError(t, l.MarkProcessed(ctx, begin.EventID, 7, "msg-1"))

	event, err := repo.GetByProviderMessageID(ctx, "msg-1")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, event.Processed)
	assert.Nil(t, event.Error)
	require.NotNil(t, event.TicketID)
	assert.Equal(t, int64(7), *event.TicketID)
}
