package lifecycle

import (
	"reflect"

	"backoffice/internal/domain"

	"github.com/shopspring/decimal"
)

// ModificationDiff compares an audit row's old_data and new_data. Only keys
// present in newData are considered. A nil result means nothing changed or
// one side of the row is missing.
func ModificationDiff(oldData, newData map[string]any) domain.Diff {
	if oldData == nil || newData == nil {
		return nil
	}
	diff := domain.Diff{}
	for key, next := range newData {
		prev, ok := oldData[key]
		if ok && sameValue(prev, next) {
			continue
		}
		diff[key] = domain.Change{From: prev, To: next}
	}
	if len(diff) == 0 {
		return nil
	}
	return diff
}

// CompareStates lists every tracked field that differs between a and b.
// Absent vs present counts as a difference. NaN is never equal to itself.
func CompareStates(a, b domain.ProductState) domain.Diff {
	diff := domain.Diff{}
	add := func(key string, from, to any) {
		if !sameValue(from, to) {
			diff[key] = domain.Change{From: from, To: to}
		}
	}
	add("status", string(a.Status), string(b.Status))
	add("condition", a.Condition, b.Condition)
	add("location", string(a.Location), string(b.Location))
	add("owner", a.Owner, b.Owner)
	add("price", priceValue(a.Price), priceValue(b.Price))

	fromSpecs, toSpecs := specValues(a.Specs), specValues(b.Specs)
	for _, key := range specKeys {
		add(key, fromSpecs[key], toSpecs[key])
	}
	return diff
}

var specKeys = []string{"color", "storage", "ram", "battery_level"}

func specValues(s domain.Specs) map[string]any {
	values := make(map[string]any, len(specKeys))
	if s.Color != nil {
		values["color"] = *s.Color
	}
	if s.Storage != nil {
		values["storage"] = *s.Storage
	}
	if s.RAM != nil {
		values["ram"] = *s.RAM
	}
	if s.BatteryLevel != nil {
		values["battery_level"] = *s.BatteryLevel
	}
	return values
}

func priceValue(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return *p
}

func sameValue(a, b any) bool {
	da, aok := a.(decimal.Decimal)
	db, bok := b.(decimal.Decimal)
	if aok && bok {
		return da.Equal(db)
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}
