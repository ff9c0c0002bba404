// Package search ranks supplier transactions against a free-text query,
// matching on the serials and barcodes of the units each line carries.
package search

import (
	"context"

	"backoffice/internal/domain"
	"backoffice/internal/logger"

	"github.com/google/uuid"
)

// Recorder observes cache behaviour. All methods may be called concurrently.
type Recorder interface {
	CacheHits(n int)
	CacheMisses(n int)
	LookupFailed()
}

type nopRecorder struct{}

func (nopRecorder) CacheHits(int)   {}
func (nopRecorder) CacheMisses(int) {}
func (nopRecorder) LookupFailed()   {}

type Enricher struct {
	lookup   UnitLookup
	cache    Cache
	log      *logger.Logger
	recorder Recorder
}

type Option func(*Enricher)

func WithRecorder(r Recorder) Option {
	return func(e *Enricher) {
		if r != nil {
			e.recorder = r
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Enricher) {
		if l != nil {
			e.log = l
		}
	}
}

func NewEnricher(lookup UnitLookup, cache Cache, opts ...Option) *Enricher {
	if cache == nil {
		cache = NewMemoryCache()
	}
	e := &Enricher{
		lookup:   lookup,
		cache:    cache,
		log:      logger.Nop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns copies of txs whose items carry the resolved units for
// their unit ids. Only ids missing from the cache are looked up, in one
// batch. A failed lookup is logged and leaves those ids unresolved.
func (e *Enricher) Enrich(ctx context.Context, txs []domain.SupplierTransaction) []domain.SupplierTransaction {
	ids := collectUnitIDs(txs)
	if len(ids) == 0 {
		return txs
	}

	resolved, err := e.cache.GetMany(ctx, ids)
	if err != nil {
		e.log.Warn(ctx, "search.cache_read_failed", err)
		resolved = map[uuid.UUID]domain.UnitRef{}
	}
	e.recorder.CacheHits(len(resolved))

	missing := make([]uuid.UUID, 0, len(ids)-len(resolved))
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		e.recorder.CacheMisses(len(missing))
		units, err := e.lookup.UnitsByIDs(ctx, missing)
		if err != nil {
			e.recorder.LookupFailed()
			ctx := e.log.WithField(ctx, "unit_ids", len(missing))
			e.log.Error(ctx, "search.unit_lookup_failed", err)
			units = nil
		}
		for _, unit := range units {
			resolved[unit.ID] = unit
		}
		if len(units) > 0 {
			if err := e.cache.PutMany(ctx, units); err != nil {
				e.log.Warn(ctx, "search.cache_write_failed", err)
			}
		}
	}

	out := make([]domain.SupplierTransaction, len(txs))
	for i, tx := range txs {
		items := make([]domain.TransactionItem, len(tx.Items))
		for j, item := range tx.Items {
			enriched := make([]domain.UnitRef, 0, len(item.UnitIDs))
			for _, id := range item.UnitIDs {
				if unit, ok := resolved[id]; ok {
					enriched = append(enriched, unit)
				}
			}
			item.EnrichedUnits = enriched
			items[j] = item
		}
		tx.Items = items
		out[i] = tx
	}
	return out
}

// ClearCache drops every cached unit. Call it after anything that can change
// a unit's serial number or barcode.
func (e *Enricher) ClearCache(ctx context.Context) error {
	return e.cache.Clear(ctx)
}

func collectUnitIDs(txs []domain.SupplierTransaction) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, tx := range txs {
		for _, item := range tx.Items {
			for _, id := range item.UnitIDs {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids
}
