package search

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"
)

// UnitLookup resolves unit ids in one batch. Ids with no match are left out
// of the result.
type UnitLookup interface {
	UnitsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UnitRef, error)
}

type LookupFunc func(ctx context.Context, ids []uuid.UUID) ([]domain.UnitRef, error)

func (f LookupFunc) UnitsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UnitRef, error) {
	return f(ctx, ids)
}

var errUnitMissing = errors.New("unit not found")

const batchTimeout = 10 * time.Second

// LoaderLookup coalesces concurrent lookups, from any number of requests,
// into a single call on the wrapped lookup. It keeps no cache of its own.
type LoaderLookup struct {
	loader *dataloader.Loader[uuid.UUID, domain.UnitRef]
}

func NewLoaderLookup(next UnitLookup, wait time.Duration) *LoaderLookup {
	batch := func(ctx context.Context, ids []uuid.UUID) []*dataloader.Result[domain.UnitRef] {
		results := make([]*dataloader.Result[domain.UnitRef], len(ids))
		// The batch runs on the context of whichever caller opened it; the
		// other callers in the window must not fail when that one goes away.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), batchTimeout)
		defer cancel()
		units, err := next.UnitsByIDs(ctx, ids)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[domain.UnitRef]{Error: err}
			}
			return results
		}
		byID := make(map[uuid.UUID]domain.UnitRef, len(units))
		for _, unit := range units {
			byID[unit.ID] = unit
		}
		for i, id := range ids {
			if unit, ok := byID[id]; ok {
				results[i] = &dataloader.Result[domain.UnitRef]{Data: unit}
				continue
			}
			results[i] = &dataloader.Result[domain.UnitRef]{Error: errUnitMissing}
		}
		return results
	}

	opts := []dataloader.Option[uuid.UUID, domain.UnitRef]{
		dataloader.WithCache[uuid.UUID, domain.UnitRef](&dataloader.NoCache[uuid.UUID, domain.UnitRef]{}),
	}
	if wait > 0 {
		opts = append(opts, dataloader.WithWait[uuid.UUID, domain.UnitRef](wait))
	}
	return &LoaderLookup{loader: dataloader.NewBatchedLoader(batch, opts...)}
}

func (l *LoaderLookup) UnitsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UnitRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, errs := l.loader.LoadMany(ctx, ids)()

	units := make([]domain.UnitRef, 0, len(data))
	for i := range data {
		if i < len(errs) && errs[i] != nil {
			if errors.Is(errs[i], errUnitMissing) {
				continue
			}
			return nil, errs[i]
		}
		units = append(units, data[i])
	}
	return units, nil
}
