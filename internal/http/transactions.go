package http

import (
	"net/http"
	"strings"

	"backoffice/internal/apperr"
	"backoffice/internal/domain"
	"backoffice/internal/excel"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, err)
		return
	}

	txs, err := h.svc.SearchTransactions(r.Context(), query.Get("search"), domain.TransactionListFilter{
		TransactionType: query.Get("type"),
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": txs, "count": len(txs)})
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.AcquisitionInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ChangedBy == nil {
		req.ChangedBy = actorFrom(r)
	}
	created, err := h.svc.CreateAcquisition(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ImportTransactionExcel takes a multipart upload: the sheet in "file" and
// the supplier in "supplier_name" (plus optional "supplier_phone", "notes").
func (h *Handler) ImportTransactionExcel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apperr.New(apperr.CodeValidation, "failed to parse multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.New(apperr.CodeValidation, "file field is required"))
		return
	}
	defer file.Close()

	units, err := excel.ParseUnitRows(file)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.CodeValidation, err, err.Error()))
		return
	}

	input := domain.AcquisitionInput{
		SupplierName:  strings.TrimSpace(r.FormValue("supplier_name")),
		SupplierPhone: optionalForm(r, "supplier_phone"),
		Notes:         optionalForm(r, "notes"),
		ChangedBy:     actorFrom(r),
		Units:         units,
	}
	created, err := h.svc.ImportAcquisition(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":          header.Filename,
		"total_rows":         len(units),
		"transaction_id":     created.TransactionID,
		"transaction_number": created.TransactionNumber,
		"unit_ids":           created.UnitIDs,
	})
}

func (h *Handler) ClearSearchCache(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearSearchCache(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Salesperson == nil {
		req.Salesperson = actorFrom(r)
	}
	created, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ValidateBarcode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ValidateBarcode(chi.URLParam(r, "code")))
}

type generateBarcodesRequest struct {
	Count int `json:"count"`
}

func (h *Handler) GenerateBarcodes(w http.ResponseWriter, r *http.Request) {
	req := generateBarcodesRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	codes, err := h.svc.GenerateBarcodes(r.Context(), req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": codes, "count": len(codes)})
}

func optionalForm(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.FormValue(key))
	if value == "" {
		return nil
	}
	return &value
}
