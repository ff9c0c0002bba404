package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"backoffice/internal/apperr"
	"backoffice/internal/logger"
	"backoffice/internal/service"

	"github.com/google/uuid"
)

const actorHeader = "X-Actor"

type Handler struct {
	svc *service.Service
	log *logger.Logger
}

func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid JSON body").
			WithDetails(map[string]any{"error": err.Error()})
	}
	return nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperr.New(apperr.CodeValidation, fmt.Sprintf("invalid integer: %s", raw))
	}
	if parsed < 0 {
		return 0, apperr.New(apperr.CodeValidation, "value cannot be negative")
	}
	return parsed, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			if layout == "2006-01-02" {
				utc := parsed.UTC()
				return &utc, nil
			}
			return &parsed, nil
		}
	}
	return nil, apperr.New(apperr.CodeValidation, fmt.Sprintf("invalid time: %s", raw))
}

func parseRequiredTime(raw, field string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, apperr.New(apperr.CodeValidation, fmt.Sprintf("%s is required", field))
	}
	parsed, err := parseOptionalTime(raw)
	if err != nil {
		return time.Time{}, err
	}
	return *parsed, nil
}

func parseUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.CodeValidation, "invalid id")
	}
	return id, nil
}

func actorFrom(r *http.Request) *string {
	actor := strings.TrimSpace(r.Header.Get(actorHeader))
	if actor == "" {
		return nil
	}
	return &actor
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err as {"error", "code", "details"}. Untyped errors are
// reported as internal without leaking their text.
func writeError(w http.ResponseWriter, err error) {
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(typed.Code())

	message := meta.PublicMessage
	switch typed.Code() {
	case apperr.CodeValidation, apperr.CodeNotFound, apperr.CodeConflict, apperr.CodeStateConflict:
		if m := typed.Message(); m != "" {
			message = m
		}
	}

	payload := map[string]any{
		"error": message,
		"code":  string(typed.Code()),
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload["details"] = details
		}
	}
	writeJSON(w, meta.HTTPStatus, payload)
}
