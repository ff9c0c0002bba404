package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backoffice/internal/domain"
	"backoffice/internal/logger"
	"backoffice/internal/repository"
	"backoffice/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubStore struct {
	trace       *domain.TraceResult
	traceErr    error
	patchNote   *string
	patchActor  *string
	acquisition *domain.AcquisitionInput
	saleErr     error
	seq         int64
}

func (s *stubStore) FetchTrace(context.Context, string) (*domain.TraceResult, error) {
	return s.trace, s.traceErr
}

func (s *stubStore) UnitsByIDs(context.Context, []uuid.UUID) ([]domain.UnitRef, error) {
	return nil, nil
}

func (s *stubStore) ListUnits(_ context.Context, filter domain.UnitListFilter) ([]domain.ProductUnit, error) {
	return []domain.ProductUnit{{ID: uuid.New(), SerialNumber: "SN-1", Status: domain.UnitAvailable}}, nil
}

func (s *stubStore) GetUnitByID(context.Context, uuid.UUID) (*domain.ProductUnit, error) {
	return nil, repository.ErrNotFound
}

func (s *stubStore) PatchUnit(_ context.Context, id uuid.UUID, _ domain.UnitPatch, actor, note *string) (*domain.ProductUnit, error) {
	s.patchActor = actor
	s.patchNote = note
	return &domain.ProductUnit{ID: id, SerialNumber: "SN-1", Status: domain.UnitRepair}, nil
}

func (s *stubStore) CreateAcquisition(_ context.Context, input domain.AcquisitionInput) (domain.CreatedTransaction, error) {
	s.acquisition = &input
	return domain.CreatedTransaction{TransactionID: uuid.New(), TransactionNumber: "ST-1"}, nil
}

func (s *stubStore) CreateSale(_ context.Context, input domain.SaleInput) (domain.CreatedSale, error) {
	if s.saleErr != nil {
		return domain.CreatedSale{}, s.saleErr
	}
	return domain.CreatedSale{SaleNumber: "SL-1", Units: len(input.Lines)}, nil
}

func (s *stubStore) ListTransactions(context.Context, domain.TransactionListFilter) ([]domain.SupplierTransaction, error) {
	return nil, nil
}

func (s *stubStore) NextBarcodeSequence(context.Context) (int64, error) {
	s.seq++
	return s.seq, nil
}

func at(d int) time.Time {
	return time.Date(2024, 1, d, 10, 0, 0, 0, time.UTC)
}

func tracedUnit() *domain.TraceResult {
	return &domain.TraceResult{
		UnitDetails: domain.ProductUnit{ID: uuid.New(), SerialNumber: "SN-1", Condition: "new", Status: domain.UnitSold},
		AcquisitionHistory: &domain.AcquisitionRecord{
			TransactionID:     uuid.New(),
			TransactionNumber: "ST-100",
			TransactionDate:   at(1),
			Supplier:          domain.Supplier{ID: uuid.New(), Name: "Acme"},
			UnitCost:          decimal.NewFromInt(100),
		},
		ModificationHistory: []domain.ModificationEvent{{
			ID:            uuid.New(),
			OperationType: "update",
			ChangedAt:     at(5),
			OldData:       map[string]any{"status": "available"},
			NewData:       map[string]any{"status": "repair"},
		}},
		SaleInfo: &domain.SaleRecord{
			SaleID:        uuid.New(),
			SaleNumber:    "SL-9",
			SoldPrice:     decimal.NewFromInt(150),
			SoldAt:        at(10),
			Customer:      domain.Customer{ID: uuid.New(), Name: "Jane"},
			PaymentMethod: "cash",
		},
	}
}

func newTestRouter(store *stubStore) http.Handler {
	svc := service.New(store, nil, service.Options{})
	return NewRouter(NewHandler(svc, logger.Nop()), RouterOptions{Logger: logger.Nop()})
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthAndRequestID(t *testing.T) {
	router := newTestRouter(&stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := serve(router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestTraceNotFoundEnvelope(t *testing.T) {
	router := newTestRouter(&stubStore{traceErr: repository.ErrNotFound})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-x/trace", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "unit not found", body["error"])
	assert.NotContains(t, body, "details")
}

func TestTraceDependencyFailureHidesCause(t *testing.T) {
	router := newTestRouter(&stubStore{traceErr: assert.AnError})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/trace", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "DEPENDENCY_ERROR", body["code"])
	assert.Equal(t, "dependency unavailable", body["error"])
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestTimelineEndpoints(t *testing.T) {
	router := newTestRouter(&stubStore{trace: tracedUnit()})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/timeline", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "SN-1", body["serial_number"])
	assert.EqualValues(t, 3, body["count"])

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/timeline/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody(t, rec)["count"])

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/timeline/state?at=2024-01-06", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "repair", decodeBody(t, rec)["status"])

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/timeline/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sold", decodeBody(t, rec)["status"])

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/timeline/state?at=2023-12-01", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTimelineCompare(t *testing.T) {
	router := newTestRouter(&stubStore{trace: tracedUnit()})

	rec := serve(router, httptest.NewRequest(http.MethodGet,
		"/api/v1/units/SN-1/timeline/compare?from=2024-01-02&to=2024-01-06T00:00:00Z", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	changes, ok := decodeBody(t, rec)["changes"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, changes, "status")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/timeline/compare?to=2024-01-06", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "from is required", decodeBody(t, rec)["error"])

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/timeline/compare?from=soon&to=2024-01-06", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimelineExport(t *testing.T) {
	router := newTestRouter(&stubStore{trace: tracedUnit()})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units/SN-1/timeline/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "timeline-SN-1.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Timeline")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestListUnits(t *testing.T) {
	router := newTestRouter(&stubStore{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units?status=available&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units?status=lost", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/units?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchUnit(t *testing.T) {
	store := &stubStore{}
	router := newTestRouter(store)
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/units/"+id.String(),
		strings.NewReader(`{"status":"repair","note":"screen cracked"}`))
	req.Header.Set(actorHeader, "alice")
	rec := serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id.String(), decodeBody(t, rec)["id"])
	require.NotNil(t, store.patchNote)
	assert.Equal(t, "screen cracked", *store.patchNote)
	require.NotNil(t, store.patchActor)
	assert.Equal(t, "alice", *store.patchActor)

	rec = serve(router, httptest.NewRequest(http.MethodPatch, "/api/v1/units/not-a-uuid", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, httptest.NewRequest(http.MethodPatch, "/api/v1/units/"+id.String(), strings.NewReader(`{"owner":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", decodeBody(t, rec)["error"])

	rec = serve(router, httptest.NewRequest(http.MethodPatch, "/api/v1/units/"+id.String(), strings.NewReader(`{"battery_level":140}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	details, ok := decodeBody(t, rec)["details"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "battery_level")
}

func TestCreateTransactionUsesActorHeader(t *testing.T) {
	store := &stubStore{}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions",
		strings.NewReader(`{"supplier_name":"Acme","units":[{"brand":"Apple","model":"iPhone 13","serial_number":"SN-1","unit_cost":"100"}]}`))
	req.Header.Set(actorHeader, "bob")
	rec := serve(router, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ST-1", decodeBody(t, rec)["transaction_number"])
	require.NotNil(t, store.acquisition)
	assert.Equal(t, "bob", *store.acquisition.ChangedBy)
	assert.Equal(t, "2000000000015", *store.acquisition.Units[0].Barcode)
}

func TestImportTransactionExcel(t *testing.T) {
	store := &stubStore{}
	router := newTestRouter(store)

	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]any{"Serial", "Brand", "Model", "Cost"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]any{"SN-1", "Apple", "iPhone 13", "99.5"}))
	sheet, err := book.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, book.Close())

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "intake.xlsx")
	require.NoError(t, err)
	_, err = part.Write(sheet.Bytes())
	require.NoError(t, err)
	require.NoError(t, form.WriteField("supplier_name", "Acme"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/import-excel", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody(t, rec)
	assert.Equal(t, "intake.xlsx", resp["file_name"])
	assert.EqualValues(t, 1, resp["total_rows"])
	require.NotNil(t, store.acquisition)
	assert.Equal(t, "import", store.acquisition.TransactionType)
	assert.Equal(t, "Acme", store.acquisition.SupplierName)
}

func TestImportTransactionExcelRequiresFile(t *testing.T) {
	router := newTestRouter(&stubStore{})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("supplier_name", "Acme"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/import-excel", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := serve(router, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file field is required", decodeBody(t, rec)["error"])
}

func TestCreateSaleStateConflict(t *testing.T) {
	router := newTestRouter(&stubStore{saleErr: repository.ErrUnitUnavailable})

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/sales",
		strings.NewReader(`{"customer_name":"Jane","payment_method":"cash","lines":[{"serial_number":"SN-1","sold_price":"150"}]}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "STATE_CONFLICT", decodeBody(t, rec)["code"])
}

func TestBarcodeEndpoints(t *testing.T) {
	router := newTestRouter(&stubStore{})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/barcodes/4006381333931/validate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["valid"])

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/barcodes/4006381333932/validate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["valid"])

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/barcodes/generate", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/barcodes/generate", strings.NewReader(`{"count":500}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Equal(t, "internal server error", body["error"])
}
