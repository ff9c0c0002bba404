package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"backoffice/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	points []domain.TimelinePoint
	state  *domain.ProductState
	err    error
	at     time.Time
}

func (s *stubSource) Timeline(context.Context, string) ([]domain.TimelinePoint, error) {
	return s.points, s.err
}

func (s *stubSource) StateAt(_ context.Context, _ string, at time.Time) (*domain.ProductState, error) {
	s.at = at
	return s.state, s.err
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-serial", " SN-1 ", "-format", "JSON"})
	require.NoError(t, err)
	assert.Equal(t, "SN-1", opts.serial)
	assert.Equal(t, formatJSON, opts.format)

	_, err = parseFlags(nil)
	assert.EqualError(t, err, "-serial is required")

	_, err = parseFlags([]string{"-serial", "SN-1", "-format", "yaml"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-serial", "SN-1", "-format", "xlsx"})
	assert.EqualError(t, err, "-out is required for xlsx output")

	_, err = parseFlags([]string{"-serial", "SN-1", "-at", "yesterday"})
	assert.EqualError(t, err, `invalid -at: "yesterday"`)
}

func TestRunTextTimeline(t *testing.T) {
	src := &stubSource{points: []domain.TimelinePoint{
		{
			EventType: domain.EventAcquisition,
			State: domain.ProductState{
				Timestamp: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
				Status:    domain.UnitAvailable,
				Location:  domain.LocationInventory,
				Owner:     "Acme",
			},
		},
		{
			EventType: domain.EventModification,
			State: domain.ProductState{
				Timestamp: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
				Status:    domain.UnitRepair,
				Location:  domain.LocationInventory,
			},
			Changes: domain.Diff{"status": {From: "available", To: "repair"}, "color": {From: nil, To: "red"}},
		},
	}}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), src, options{serial: "SN-1", format: formatText}, &out))
	text := out.String()
	assert.Contains(t, text, "TIMESTAMP")
	assert.Contains(t, text, "2024-01-01 09:00")
	assert.Contains(t, text, "Acme")
	assert.Contains(t, text, "color,status")
}

func TestRunStateAtJSON(t *testing.T) {
	price := decimal.NewFromInt(150)
	src := &stubSource{state: &domain.ProductState{Status: domain.UnitSold, Owner: "Jane", Price: &price}}

	var out bytes.Buffer
	err := run(context.Background(), src, options{serial: "SN-1", format: formatJSON, at: "2024-01-10"}, &out)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), src.at)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "sold", decoded["status"])
	assert.Equal(t, "Jane", decoded["owner"])
}

func TestRunPropagatesErrors(t *testing.T) {
	src := &stubSource{err: errors.New("boom")}
	err := run(context.Background(), src, options{serial: "SN-1", format: formatText}, &bytes.Buffer{})
	assert.EqualError(t, err, "boom")
}
