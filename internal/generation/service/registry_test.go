package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casegen/casegen-backend/internal/apperrors"
	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/generation/draftstore"
)

func newTestRegistry(store draftstore.Store, details DetailSource) *Registry {
	return NewRegistry(Deps{Store: store, Details: details, Gateway: &fakeGateway{}, SaveDelay: 10 * time.Millisecond})
}

func TestRegistry_RunsInBackground(t *testing.T) {
	store := draftstore.NewMemoryStore()
	reg := newTestRegistry(store, &scriptedDetails{})

	orch, err := reg.Start(context.Background(), StartRequest{ProjectName: "Suite", Titles: []string{"A", "B"}})
	require.NoError(t, err)
	require.NotEmpty(t, orch.Key())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.Wait(ctx, orch.Key()))

	got, err := reg.Get(orch.Key())
	require.NoError(t, err)
	assert.Equal(t, 2, got.State().Progress.Completed)
}

func TestRegistry_OneWorkflowPerKey(t *testing.T) {
	details := &scriptedDetails{block: make(chan struct{})}
	reg := newTestRegistry(draftstore.NewMemoryStore(), details)

	orch, err := reg.Start(context.Background(), StartRequest{Key: "k", Titles: []string{"A"}})
	require.NoError(t, err)

	_, err = reg.Start(context.Background(), StartRequest{Key: "k", Titles: []string{"A"}})
	assert.ErrorIs(t, err, domain.ErrWorkflowActive)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	close(details.block)
	require.NoError(t, reg.Wait(context.Background(), "k"))
	_, err = orch.Finish(context.Background())
	require.NoError(t, err)

	// a finished workflow can be replaced
	_, err = reg.Start(context.Background(), StartRequest{Key: "k", Titles: []string{"B"}})
	require.NoError(t, err)
	require.NoError(t, reg.Wait(context.Background(), "k"))
}

func TestRegistry_AbandonStopsAndClears(t *testing.T) {
	store := draftstore.NewMemoryStore()
	details := &scriptedDetails{block: make(chan struct{})}
	reg := newTestRegistry(store, details)

	orch, err := reg.Start(context.Background(), StartRequest{Titles: []string{"A", "B"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return details.count.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, reg.Abandon(context.Background(), orch.Key()))
	assert.Zero(t, store.Len())
	assert.Equal(t, int32(1), details.count.Load(), "no further drafts generated")

	_, err = reg.Get(orch.Key())
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestRegistry_StartFailureReleasesKey(t *testing.T) {
	reg := newTestRegistry(draftstore.NewMemoryStore(), &scriptedDetails{})

	_, err := reg.Start(context.Background(), StartRequest{Key: "k"})
	assert.ErrorIs(t, err, domain.ErrNoDrafts)

	_, err = reg.Get("k")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestRegistry_ShutdownKeepsSnapshots(t *testing.T) {
	store := draftstore.NewMemoryStore()
	details := &scriptedDetails{block: make(chan struct{})}
	reg := newTestRegistry(store, details)

	_, err := reg.Start(context.Background(), StartRequest{Key: "k", Titles: []string{"A"}})
	require.NoError(t, err)

	reg.Shutdown(context.Background())
	snap, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Len(t, snap.TestCases, 1)
}
