package dataloader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/account-import/internal/domain"
)

type fakeAgencyRepo struct {
	mu       sync.Mutex
	agencies map[int64]domain.Agency
	calls    [][]int64
	err      error
}

func (f *fakeAgencyRepo) GetByIDs(_ context.Context, ids []int64) ([]domain.Agency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]int64(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Agency
	for _, id := range ids {
		if a, ok := f.agencies[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAgencyRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestAgencyLoader_CachesHits(t *testing.T) {
	t.Parallel()

	repo := &fakeAgencyRepo{agencies: map[int64]domain.Agency{
		7: {ID: 7, Name: "Beratungsstelle Mitte", ConsultingTypeID: 1},
	}}
	l := NewAgencyLoader(repo)
	ctx := context.Background()

	for range 3 {
		a, err := l.GetByID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "Beratungsstelle Mitte", a.Name)
	}

	assert.Equal(t, 1, repo.callCount())
}

func TestAgencyLoader_NotFoundIsCached(t *testing.T) {
	t.Parallel()

	repo := &fakeAgencyRepo{agencies: map[int64]domain.Agency{}}
	l := NewAgencyLoader(repo)
	ctx := context.Background()

	_, err := l.GetByID(ctx, 99)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = l.GetByID(ctx, 99)
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 1, repo.callCount())
}

func TestAgencyLoader_TransientErrorIsEvicted(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	repo := &fakeAgencyRepo{
		agencies: map[int64]domain.Agency{5: {ID: 5}},
		err:      boom,
	}
	l := NewAgencyLoader(repo)
	ctx := context.Background()

	_, err := l.GetByID(ctx, 5)
	require.ErrorIs(t, err, boom)

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()

	a, err := l.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.ID)
	assert.Equal(t, 2, repo.callCount())
}

func TestAgencyLoader_BatchesConcurrentLoads(t *testing.T) {
	t.Parallel()

	repo := &fakeAgencyRepo{agencies: map[int64]domain.Agency{
		1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3},
	}}
	l := NewAgencyLoader(repo)
	ctx := context.Background()

	thunks := []func() (*domain.Agency, error){
		l.loader.Load(ctx, 1),
		l.loader.Load(ctx, 2),
		l.loader.Load(ctx, 3),
	}
	for _, th := range thunks {
		_, err := th()
		require.NoError(t, err)
	}

	assert.Equal(t, 1, repo.callCount())
}
