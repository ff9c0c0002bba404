package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"backoffice/internal/apperr"
	"backoffice/internal/domain"
	"backoffice/internal/excel"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 200)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, err)
		return
	}

	units, err := h.svc.ListUnits(r.Context(), domain.UnitListFilter{
		Search: query.Get("search"),
		Status: domain.UnitStatus(strings.TrimSpace(query.Get("status"))),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": units, "count": len(units)})
}

type patchUnitRequest struct {
	domain.UnitPatch
	Note *string `json:"note"`
}

func (h *Handler) PatchUnit(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req patchUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	unit, err := h.svc.UpdateUnit(r.Context(), id, req.UnitPatch, actorFrom(r), req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (h *Handler) TraceUnit(w http.ResponseWriter, r *http.Request) {
	trace, err := h.svc.TraceUnit(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")
	points, err := h.svc.Timeline(r.Context(), serial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"serial_number": serial,
		"items":         points,
		"count":         len(points),
	})
}

func (h *Handler) TimelineEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.TimelineEvents(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events, "count": len(events)})
}

// TimelineState answers ?at=; a missing value means now.
func (h *Handler) TimelineState(w http.ResponseWriter, r *http.Request) {
	at, err := parseOptionalTime(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, err)
		return
	}
	when := time.Now().UTC()
	if at != nil {
		when = *at
	}
	state, err := h.svc.StateAt(r.Context(), chi.URLParam(r, "serial"), when)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) TimelineCompare(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := parseRequiredTime(query.Get("from"), "from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseRequiredTime(query.Get("to"), "to")
	if err != nil {
		writeError(w, err)
		return
	}
	comparison, err := h.svc.CompareAt(r.Context(), chi.URLParam(r, "serial"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

func (h *Handler) TimelineExport(w http.ResponseWriter, r *http.Request) {
	serial := strings.TrimSpace(chi.URLParam(r, "serial"))
	points, err := h.svc.Timeline(r.Context(), serial)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteTimeline(&buf, serial, points); err != nil {
		h.log.Error(r.Context(), "timeline.export_failed", err)
		writeError(w, apperr.Wrap(apperr.CodeInternal, err, "failed to render workbook"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "timeline-"+serial+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
