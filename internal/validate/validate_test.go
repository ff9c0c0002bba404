package validate

import (
	"testing"
	"time"

	"backoffice/internal/apperr"
	"backoffice/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructReportsNestedFieldPaths(t *testing.T) {
	trace := domain.TraceResult{
		AcquisitionHistory: &domain.AcquisitionRecord{
			TransactionDate: time.Now(),
		},
		ModificationHistory: []domain.ModificationEvent{
			{OperationType: "update", ChangedAt: time.Now()},
			{OperationType: "update"},
		},
	}

	err := Struct(trace)
	typed := apperr.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperr.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{
		"acquisition_history.supplier.name":  "is required",
		"modification_history[1].changed_at": "is required",
	}, typed.Details())
}

func TestStructAcceptsValidTrace(t *testing.T) {
	trace := domain.TraceResult{
		UnitDetails:         domain.ProductUnit{SerialNumber: "SN-1"},
		ModificationHistory: []domain.ModificationEvent{{ChangedAt: time.Now()}},
	}
	assert.NoError(t, Struct(trace))
}

func TestStructRangeMessages(t *testing.T) {
	level := 140
	err := Struct(domain.UnitPatch{BatteryLevel: &level})
	typed := apperr.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"battery_level": "must be at most 100"}, typed.Details())
}
