// Package dataloader provides batch-lifetime caching readers over the
// repositories. Asker batches look up the same few agencies for thousands of
// rows; the loader collapses those lookups into one query per agency.
package dataloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/heartmarshall/account-import/internal/domain"
)

const (
	maxBatch = 100
	wait     = time.Millisecond
)

type agencyRepo interface {
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Agency, error)
}

// AgencyLoader caches agencies by id for the lifetime of one batch.
// Not-found results are cached too; any other error is evicted so the next
// row retries the query.
type AgencyLoader struct {
	loader *dataloader.Loader[int64, *domain.Agency]
}

// NewAgencyLoader creates a loader backed by repo. Create one per batch.
func NewAgencyLoader(repo agencyRepo) *AgencyLoader {
	return &AgencyLoader{
		loader: newLoader(newAgencyBatchFn(repo)),
	}
}

// GetByID returns the agency or an error wrapping domain.ErrNotFound.
func (l *AgencyLoader) GetByID(ctx context.Context, id int64) (*domain.Agency, error) {
	a, err := l.loader.Load(ctx, id)()
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			l.loader.Clear(ctx, id)
		}
		return nil, err
	}
	return a, nil
}

func newAgencyBatchFn(repo agencyRepo) dataloader.BatchFunc[int64, *domain.Agency] {
	return func(ctx context.Context, keys []int64) []*dataloader.Result[*domain.Agency] {
		agencies, err := repo.GetByIDs(ctx, keys)
		if err != nil {
			return errorResults[*domain.Agency](len(keys), err)
		}

		byID := make(map[int64]*domain.Agency, len(agencies))
		for i := range agencies {
			byID[agencies[i].ID] = &agencies[i]
		}

		results := make([]*dataloader.Result[*domain.Agency], len(keys))
		for i, key := range keys {
			if a, ok := byID[key]; ok {
				results[i] = &dataloader.Result[*domain.Agency]{Data: a}
			} else {
				results[i] = &dataloader.Result[*domain.Agency]{Error: fmt.Errorf("agency %d: %w", key, domain.ErrNotFound)}
			}
		}
		return results
	}
}

// newLoader creates a dataloader.Loader with standard batch parameters.
func newLoader[K comparable, V any](batchFn dataloader.BatchFunc[K, V]) *dataloader.Loader[K, V] {
	return dataloader.NewBatchedLoader(
		batchFn,
		dataloader.WithWait[K, V](wait),
		dataloader.WithBatchCapacity[K, V](maxBatch),
	)
}

// errorResults returns a slice of error results for all keys.
func errorResults[V any](n int, err error) []*dataloader.Result[V] {
	results := make([]*dataloader.Result[V], n)
	for i := range results {
		results[i] = &dataloader.Result[V]{Error: err}
	}
	return results
}
