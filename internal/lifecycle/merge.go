package lifecycle

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"backoffice/internal/domain"
)

// StatePatch is a sparse update over a ProductState. Nil fields keep the
// value of the state being patched.
type StatePatch struct {
	Status       *domain.UnitStatus
	Condition    *string
	Color        *string
	Storage      *string
	RAM          *string
	BatteryLevel *int
}

// PatchFromData reads the keys the replay understands out of an audit
// row's new_data. Unknown keys and null values are ignored.
func PatchFromData(data map[string]any) StatePatch {
	var patch StatePatch
	if len(data) == 0 {
		return patch
	}
	if value, ok := stringValue(data["status"]); ok {
		status := domain.UnitStatus(value)
		patch.Status = &status
	}
	if value, ok := stringValue(data["condition"]); ok {
		patch.Condition = &value
	}
	if value, ok := stringValue(data["color"]); ok {
		patch.Color = &value
	}
	if value, ok := stringValue(data["storage"]); ok {
		patch.Storage = &value
	}
	if value, ok := stringValue(data["ram"]); ok {
		patch.RAM = &value
	}
	if value, ok := intValue(data["battery_level"]); ok {
		patch.BatteryLevel = &value
	}
	return patch
}

// Merge applies patch over base, last write wins per field.
func Merge(base domain.ProductState, patch StatePatch) domain.ProductState {
	next := base
	next.Metadata = cloneMetadata(base.Metadata)
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Condition != nil {
		next.Condition = *patch.Condition
	}
	if patch.Color != nil {
		next.Specs.Color = patch.Color
	}
	if patch.Storage != nil {
		next.Specs.Storage = patch.Storage
	}
	if patch.RAM != nil {
		next.Specs.RAM = patch.RAM
	}
	if patch.BatteryLevel != nil {
		next.Specs.BatteryLevel = patch.BatteryLevel
	}
	return next
}

func cloneMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+4)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func stringValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

func intValue(raw any) (int, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "%"))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
