package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLookupCoalescesConcurrentCalls(t *testing.T) {
	a, b := unitRef("SN-A"), unitRef("SN-B")
	inner := newCountingLookup(a, b)
	lookup := NewLoaderLookup(inner, 100*time.Millisecond)

	var wg sync.WaitGroup
	results := make([][]domain.UnitRef, 2)
	for i, id := range []uuid.UUID{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			units, err := lookup.UnitsByIDs(context.Background(), []uuid.UUID{id})
			assert.NoError(t, err)
			results[i] = units
		}(i, id)
	}
	wg.Wait()

	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, []domain.UnitRef{a}, results[0])
	assert.Equal(t, []domain.UnitRef{b}, results[1])
}

func TestLoaderLookupSkipsMissingAndPropagatesErrors(t *testing.T) {
	a := unitRef("SN-A")
	inner := newCountingLookup(a)
	lookup := NewLoaderLookup(inner, time.Millisecond)

	units, err := lookup.UnitsByIDs(context.Background(), []uuid.UUID{uuid.New(), a.ID})
	require.NoError(t, err)
	assert.Equal(t, []domain.UnitRef{a}, units)

	inner.err = errors.New("timeout")
	_, err = lookup.UnitsByIDs(context.Background(), []uuid.UUID{a.ID})
	assert.EqualError(t, err, "timeout")

	units, err = lookup.UnitsByIDs(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, units)
}

type contextLookup struct {
	mu          sync.Mutex
	units       map[uuid.UUID]domain.UnitRef
	sawErr      error
	hasDeadline bool
}

func (l *contextLookup) UnitsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UnitRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, l.hasDeadline = ctx.Deadline()
	if err := ctx.Err(); err != nil {
		l.sawErr = err
		return nil, err
	}
	out := make([]domain.UnitRef, 0, len(ids))
	for _, id := range ids {
		if unit, ok := l.units[id]; ok {
			out = append(out, unit)
		}
	}
	return out, nil
}

func TestLoaderLookupSurvivesCancelledCaller(t *testing.T) {
	a, b := unitRef("SN-A"), unitRef("SN-B")
	inner := &contextLookup{units: map[uuid.UUID]domain.UnitRef{a.ID: a, b.ID: b}}
	lookup := NewLoaderLookup(inner, 50*time.Millisecond)

	cancelled, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var aborted, healthy []domain.UnitRef
	var abortedErr, healthyErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		aborted, abortedErr = lookup.UnitsByIDs(cancelled, []uuid.UUID{a.ID})
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	go func() {
		defer wg.Done()
		healthy, healthyErr = lookup.UnitsByIDs(context.Background(), []uuid.UUID{b.ID})
	}()
	wg.Wait()

	require.NoError(t, healthyErr)
	assert.Equal(t, []domain.UnitRef{b}, healthy)
	require.NoError(t, abortedErr)
	assert.Equal(t, []domain.UnitRef{a}, aborted)
	assert.NoError(t, inner.sawErr)
	assert.True(t, inner.hasDeadline)
}
