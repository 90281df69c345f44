package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiclab/topicbot/internal/domain"
)

type fakeResolutionStore struct {
	saved   *domain.ResolutionState
	saveErr error
	saves   int
}

func (f *fakeResolutionStore) Save(_ context.Context, state *domain.ResolutionState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = state
	f.saves++
	return nil
}

func (f *fakeResolutionStore) Load(context.Context) (*domain.ResolutionState, error) {
	if f.saved == nil {
		return domain.NewResolutionState(), nil
	}
	return f.saved, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func resolved(id string, at *time.Time) domain.Market {
	return domain.Market{ID: id, Resolution: domain.ResolutionYes, ResolvedAt: at}
}

func TestPollDetectsNewResolutions(t *testing.T) {
	store := &fakeResolutionStore{}
	tr := NewTracker(nil, store, testLogger())

	current := []domain.Market{
		resolved("b", ts("2024-01-02T00:00:00Z")),
		resolved("a", ts("2024-01-01T00:00:00Z")),
		{ID: "c", Resolution: domain.ResolutionUnresolved},
	}

	fresh, err := tr.Poll(context.Background(), current)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	// Ordered by (resolved_at, id).
	assert.Equal(t, "a", fresh[0].ID)
	assert.Equal(t, "b", fresh[1].ID)
	assert.Equal(t, 1, store.saves)

	// Unresolved markets are not recorded.
	assert.False(t, tr.State().ResolvedBefore("c"))
}

func TestPollIsIdempotent(t *testing.T) {
	store := &fakeResolutionStore{}
	tr := NewTracker(nil, store, testLogger())

	current := []domain.Market{resolved("a", ts("2024-01-01T00:00:00Z"))}

	fresh, err := tr.Poll(context.Background(), current)
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	// Same input again: nothing new, no extra persistence.
	fresh, err = tr.Poll(context.Background(), current)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.Equal(t, 1, store.saves)
}

func TestPollSortsNilResolvedAtLast(t *testing.T) {
	tr := NewTracker(nil, &fakeResolutionStore{}, testLogger())

	current := []domain.Market{
		resolved("z", nil),
		resolved("a", ts("2024-01-05T00:00:00Z")),
	}

	fresh, err := tr.Poll(context.Background(), current)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "a", fresh[0].ID)
	assert.Equal(t, "z", fresh[1].ID)
}

func TestPollFailedPersistLeavesStateUnchanged(t *testing.T) {
	store := &fakeResolutionStore{saveErr: errors.New("connection lost")}
	tr := NewTracker(nil, store, testLogger())

	current := []domain.Market{resolved("a", ts("2024-01-01T00:00:00Z"))}

	_, err := tr.Poll(context.Background(), current)
	require.Error(t, err)
	assert.False(t, tr.State().ResolvedBefore("a"))

	// Once the store recovers, the same transition is picked up again.
	store.saveErr = nil
	fresh, err := tr.Poll(context.Background(), current)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.True(t, tr.State().ResolvedBefore("a"))
}
