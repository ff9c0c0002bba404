package repository

import (
	"fmt"
	"testing"
	"time"

	"backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestApplyUnitPatchRecordsOnlyChangedKeys(t *testing.T) {
	unit := domain.ProductUnit{
		SerialNumber: "SN-1",
		Color:        ptr("black"),
		Storage:      ptr("128GB"),
		BatteryLevel: ptr(90),
		Condition:    "new",
		Status:       domain.UnitAvailable,
	}
	status := domain.UnitRepair

	oldData, newData := applyUnitPatch(&unit, domain.UnitPatch{
		Color:        ptr("black"),
		Storage:      ptr("256GB"),
		BatteryLevel: ptr(85),
		Status:       &status,
	})

	assert.Equal(t, map[string]any{"storage": "128GB", "battery_level": 90, "status": "available"}, oldData)
	assert.Equal(t, map[string]any{"storage": "256GB", "battery_level": 85, "status": "repair"}, newData)
	assert.Equal(t, "256GB", *unit.Storage)
	assert.Equal(t, domain.UnitRepair, unit.Status)
}

func TestApplyUnitPatchClearsBlankStrings(t *testing.T) {
	unit := domain.ProductUnit{Barcode: ptr("2000000000015"), Condition: "used"}

	oldData, newData := applyUnitPatch(&unit, domain.UnitPatch{Barcode: ptr("  "), Condition: ptr("")})

	assert.Nil(t, unit.Barcode)
	assert.Equal(t, "used", unit.Condition)
	assert.Equal(t, map[string]any{"barcode": "2000000000015"}, oldData)
	assert.Equal(t, map[string]any{"barcode": nil}, newData)
}

func TestApplyUnitPatchNoChanges(t *testing.T) {
	unit := domain.ProductUnit{Condition: "new", Status: domain.UnitAvailable}
	status := domain.UnitAvailable

	_, newData := applyUnitPatch(&unit, domain.UnitPatch{Status: &status, Condition: ptr("new")})
	assert.Empty(t, newData)
}

func TestUnitSnapshot(t *testing.T) {
	snapshot := unitSnapshot(domain.ProductUnit{
		SerialNumber: "SN-1",
		Color:        ptr("blue"),
		Condition:    "new",
		Status:       domain.UnitAvailable,
	})
	assert.Equal(t, map[string]any{
		"serial_number": "SN-1",
		"color":         "blue",
		"condition":     "new",
		"status":        "available",
	}, snapshot)
}

func TestJSONHelpers(t *testing.T) {
	param, err := jsonParam(nil)
	require.NoError(t, err)
	assert.Nil(t, param)

	param, err = jsonParam(map[string]any{"status": "sold"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"sold"}`, string(param.([]byte)))

	decoded, err := decodeJSONMap([]byte(`{"battery_level": 80}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"battery_level": float64(80)}, decoded)

	decoded, err = decodeJSONMap([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = decodeJSONMap([]byte("{"))
	assert.Error(t, err)
}

func TestDocumentNumber(t *testing.T) {
	id := uuid.MustParse("1a2b3c4d-0000-0000-0000-000000000000")
	at := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "ST-20240115-1A2B3C4D", documentNumber("ST", at, id))
}

func TestPgUUIDRoundTripDropsInvalid(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	converted := toPgUUIDs(ids)
	converted = append(converted, converted[0])
	converted[2].Valid = false
	assert.Equal(t, ids, fromPgUUIDs(converted))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(ErrNotFound))
}

func TestNormalizePaging(t *testing.T) {
	assert.Equal(t, 200, normalizeLimit(0))
	assert.Equal(t, 1000, normalizeLimit(5000))
	assert.Equal(t, 25, normalizeLimit(25))
	assert.Equal(t, 0, normalizeOffset(-3))
}
