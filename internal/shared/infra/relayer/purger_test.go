package relayer

import (
	"context"
	"errors"
	"testing"
	"time"

	sharedDomain "github.com/davicafu/pujalab/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/pujalab/tests/mocks"
)

type fakeArchiver struct {
	archived []sharedDomain.OutboxEvent
	err      error
}

func (a *fakeArchiver) Archive(ctx context.Context, records []sharedDomain.OutboxEvent) error {
	if a.err != nil {
		return a.err
	}
	a.archived = append(a.archived, records...)
	return nil
}

func TestPurger_ArchivesThenDeletes(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	archiver := &fakeArchiver{}

	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	dispatchedAt := now.Add(-48 * time.Hour)
	records := []sharedDomain.OutboxEvent{
		{ID: uuid.New(), EventType: "auction.created", DispatchedAt: &dispatchedAt},
		{ID: uuid.New(), EventType: "bid.placed"}, // expirado sin despachar
	}

	repo.On("FetchPurgeable", mock.Anything, now.Add(-24*time.Hour), now.Add(-72*time.Hour), 100).Return(records, nil).Once()
	repo.On("DeleteOutbox", mock.Anything, []uuid.UUID{records[0].ID, records[1].ID}).Return(nil).Once()

	p := NewPurger(repo, archiver, 24*time.Hour, 72*time.Hour, 100, zap.NewNop())
	p.now = func() time.Time { return now }

	n, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, archiver.archived, 2)
	repo.AssertExpectations(t)
}

func TestPurger_ArchiveFailureKeepsRecords(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	archiver := &fakeArchiver{err: errors.New("clickhouse down")}

	records := []sharedDomain.OutboxEvent{{ID: uuid.New()}}
	repo.On("FetchPurgeable", mock.Anything, mock.Anything, mock.Anything, 100).Return(records, nil).Once()

	p := NewPurger(repo, archiver, time.Hour, time.Hour, 100, zap.NewNop())

	_, err := p.Run(context.Background())
	assert.Error(t, err)
	repo.AssertNotCalled(t, "DeleteOutbox", mock.Anything, mock.Anything)
}

func TestPurger_NothingToPurge(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	repo.On("FetchPurgeable", mock.Anything, mock.Anything, mock.Anything, 100).Return([]sharedDomain.OutboxEvent{}, nil).Once()

	p := NewPurger(repo, nil, time.Hour, time.Hour, 100, zap.NewNop())

	n, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurger_ScheduleRejectsBadSpec(t *testing.T) {
	p := NewPurger(new(mocks.MockOutboxRepository), nil, time.Hour, time.Hour, 100, zap.NewNop())

	_, err := p.Schedule(context.Background(), "not a schedule")
	assert.Error(t, err)
}

var _ sharedDomain.OutboxJanitor = (*mocks.MockOutboxRepository)(nil)
