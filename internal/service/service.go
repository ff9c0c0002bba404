package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"backoffice/internal/apperr"
	"backoffice/internal/domain"
	"backoffice/internal/lifecycle"
	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/repository"
	"backoffice/internal/search"
	"backoffice/internal/validate"

	"github.com/google/uuid"
)

// Store is the persistence the service needs. *repository.Repository
// satisfies it.
type Store interface {
	FetchTrace(ctx context.Context, serial string) (*domain.TraceResult, error)
	UnitsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UnitRef, error)
	ListUnits(ctx context.Context, filter domain.UnitListFilter) ([]domain.ProductUnit, error)
	GetUnitByID(ctx context.Context, id uuid.UUID) (*domain.ProductUnit, error)
	PatchUnit(ctx context.Context, id uuid.UUID, patch domain.UnitPatch, actor, note *string) (*domain.ProductUnit, error)
	CreateAcquisition(ctx context.Context, input domain.AcquisitionInput) (domain.CreatedTransaction, error)
	CreateSale(ctx context.Context, input domain.SaleInput) (domain.CreatedSale, error)
	ListTransactions(ctx context.Context, filter domain.TransactionListFilter) ([]domain.SupplierTransaction, error)
	NextBarcodeSequence(ctx context.Context) (int64, error)
}

type Options struct {
	Logger        *logger.Logger
	Metrics       *metrics.TimelineMetrics
	BarcodePrefix string
	SearchLimit   int
}

type Service struct {
	store         Store
	enricher      *search.Enricher
	log           *logger.Logger
	metrics       *metrics.TimelineMetrics
	barcodePrefix string
	searchLimit   int
	now           func() time.Time
}

// New builds the service. A nil enricher falls back to one backed by the
// store and a process-local cache.
func New(store Store, enricher *search.Enricher, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	if enricher == nil {
		enricher = search.NewEnricher(store, nil, search.WithLogger(log))
	}
	prefix := strings.TrimSpace(opts.BarcodePrefix)
	if prefix == "" {
		prefix = "200"
	}
	limit := opts.SearchLimit
	if limit <= 0 {
		limit = 500
	}
	return &Service{
		store:         store,
		enricher:      enricher,
		log:           log,
		metrics:       opts.Metrics,
		barcodePrefix: prefix,
		searchLimit:   limit,
		now:           time.Now,
	}
}

// StateComparison is the answer to "what changed between two instants".
type StateComparison struct {
	From    domain.ProductState `json:"from"`
	To      domain.ProductState `json:"to"`
	Changes domain.Diff         `json:"changes"`
}

func (s *Service) TraceUnit(ctx context.Context, serial string) (*domain.TraceResult, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, apperr.New(apperr.CodeValidation, "serial number is required")
	}
	ctx = s.log.WithField(ctx, "serial", serial)

	trace, err := s.store.FetchTrace(ctx, serial)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveTrace("not_found")
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "unit not found")
		}
		s.metrics.ObserveTrace("error")
		s.log.Error(ctx, "trace.fetch_failed", err)
		return nil, apperr.Wrap(apperr.CodeDependency, err, "failed to fetch unit history")
	}
	if err := validate.Struct(trace); err != nil {
		s.metrics.ObserveTrace("invalid")
		s.log.Warn(ctx, "trace.invalid_records", err)
		return nil, err
	}
	s.metrics.ObserveTrace("ok")
	return trace, nil
}

func (s *Service) Timeline(ctx context.Context, serial string) ([]domain.TimelinePoint, error) {
	trace, err := s.TraceUnit(ctx, serial)
	if err != nil {
		return nil, err
	}
	points := lifecycle.ReconstructTimeline(*trace)
	s.metrics.ObservePoints(len(points))
	return points, nil
}

func (s *Service) TimelineEvents(ctx context.Context, serial string) ([]domain.TimelineEvent, error) {
	trace, err := s.TraceUnit(ctx, serial)
	if err != nil {
		return nil, err
	}
	return lifecycle.GenerateTimelineEvents(*trace), nil
}

func (s *Service) StateAt(ctx context.Context, serial string, at time.Time) (*domain.ProductState, error) {
	points, err := s.Timeline(ctx, serial)
	if err != nil {
		return nil, err
	}
	state := lifecycle.StateAt(points, at)
	if state == nil {
		return nil, apperr.New(apperr.CodeNotFound, "no recorded state at or before the requested time").
			WithDetails(map[string]any{"at": at})
	}
	return state, nil
}

func (s *Service) CompareAt(ctx context.Context, serial string, from, to time.Time) (*StateComparison, error) {
	points, err := s.Timeline(ctx, serial)
	if err != nil {
		return nil, err
	}
	fromState := lifecycle.StateAt(points, from)
	toState := lifecycle.StateAt(points, to)
	if fromState == nil || toState == nil {
		return nil, apperr.New(apperr.CodeNotFound, "no recorded state at one of the requested times").
			WithDetails(map[string]any{"from": from, "to": to})
	}
	return &StateComparison{
		From:    *fromState,
		To:      *toState,
		Changes: lifecycle.CompareStates(*fromState, *toState),
	}, nil
}

// SearchTransactions loads recent transactions, resolves the serials and
// barcodes of their units, and ranks them against term.
func (s *Service) SearchTransactions(ctx context.Context, term string, filter domain.TransactionListFilter) ([]domain.SupplierTransaction, error) {
	if filter.Limit <= 0 || filter.Limit > s.searchLimit {
		filter.Limit = s.searchLimit
	}
	txs, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		s.log.Error(ctx, "search.list_transactions_failed", err)
		return nil, apperr.Wrap(apperr.CodeDependency, err, "failed to list transactions")
	}
	enriched := s.enricher.Enrich(ctx, txs)
	return search.Search(enriched, term), nil
}

func (s *Service) ClearSearchCache(ctx context.Context) error {
	if err := s.enricher.ClearCache(ctx); err != nil {
		s.log.Error(ctx, "search.cache_clear_failed", err)
		return apperr.Wrap(apperr.CodeDependency, err, "failed to clear search cache")
	}
	return nil
}

func (s *Service) ListUnits(ctx context.Context, filter domain.UnitListFilter) ([]domain.ProductUnit, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.New(apperr.CodeValidation, "invalid status filter").
			WithDetails(map[string]string{"status": "is invalid"})
	}
	units, err := s.store.ListUnits(ctx, filter)
	if err != nil {
		return nil, s.storeError(ctx, "units.list_failed", err)
	}
	return units, nil
}

func (s *Service) GetUnit(ctx context.Context, id uuid.UUID) (*domain.ProductUnit, error) {
	unit, err := s.store.GetUnitByID(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, "units.get_failed", err)
	}
	return unit, nil
}

// UpdateUnit applies a sparse patch. The search cache is cleared afterwards
// since a changed barcode invalidates cached unit lookups.
func (s *Service) UpdateUnit(ctx context.Context, id uuid.UUID, patch domain.UnitPatch, actor, note *string) (*domain.ProductUnit, error) {
	if patch.Empty() {
		return nil, apperr.New(apperr.CodeValidation, "patch has no fields")
	}
	if err := validate.Struct(patch); err != nil {
		return nil, err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperr.New(apperr.CodeValidation, "validation failed").
			WithDetails(map[string]string{"status": "is invalid"})
	}
	if patch.Barcode != nil && strings.TrimSpace(*patch.Barcode) != "" {
		if err := checkBarcode(*patch.Barcode, "barcode"); err != nil {
			return nil, err
		}
	}

	unit, err := s.store.PatchUnit(ctx, id, patch, normalizeNullable(actor), normalizeNullable(note))
	if err != nil {
		return nil, s.storeError(ctx, "units.patch_failed", err)
	}
	if err := s.enricher.ClearCache(ctx); err != nil {
		s.log.Warn(ctx, "search.cache_clear_failed", err)
	}
	return unit, nil
}

func (s *Service) CreateSale(ctx context.Context, input domain.SaleInput) (domain.CreatedSale, error) {
	if err := validate.Struct(input); err != nil {
		return domain.CreatedSale{}, err
	}
	seen := make(map[string]struct{}, len(input.Lines))
	for _, line := range input.Lines {
		serial := strings.TrimSpace(line.SerialNumber)
		if _, dup := seen[serial]; dup {
			return domain.CreatedSale{}, apperr.New(apperr.CodeValidation, "duplicate serial number in sale").
				WithDetails(map[string]string{"serial_number": serial})
		}
		seen[serial] = struct{}{}
		if line.SoldPrice.IsNegative() {
			return domain.CreatedSale{}, apperr.New(apperr.CodeValidation, "validation failed").
				WithDetails(map[string]string{"sold_price": "must not be negative"})
		}
	}

	created, err := s.store.CreateSale(ctx, input)
	if err != nil {
		return domain.CreatedSale{}, s.storeError(ctx, "sales.create_failed", err)
	}
	return created, nil
}

// storeError turns repository sentinels into typed errors and logs the rest.
func (s *Service) storeError(ctx context.Context, event string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "resource not found")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Wrap(apperr.CodeConflict, err, "record already exists")
	case errors.Is(err, repository.ErrUnitUnavailable):
		return apperr.Wrap(apperr.CodeStateConflict, err, "unit cannot change in its current status")
	case errors.Is(err, repository.ErrOutOfOrder):
		return apperr.Wrap(apperr.CodeValidation, err, "date precedes the unit's recorded history")
	}
	s.log.Error(ctx, event, err)
	return apperr.Wrap(apperr.CodeDependency, err, "storage operation failed")
}

func normalizeNullable(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
