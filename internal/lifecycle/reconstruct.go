// Package lifecycle replays a unit's acquisition, audit rows and sale into
// point-in-time states, and formats the same records as display events.
package lifecycle

import (
	"sort"
	"strings"
	"time"

	"backoffice/internal/domain"
)

// ReconstructTimeline replays a trace into ordered timeline points.
//
// The acquisition, when present, is always the first point and the sale,
// when present, always the last. Modifications are replayed in changed_at
// order regardless of how they were handed in. Audit rows written by a sale
// are not replayed when the sale record is present, since the sale point
// carries that change. Without an acquisition the
// replay starts from a baseline built from the unit itself, and that
// baseline is not returned as a point.
func ReconstructTimeline(trace domain.TraceResult) []domain.TimelinePoint {
	unit := trace.UnitDetails
	points := make([]domain.TimelinePoint, 0, len(trace.ModificationHistory)+2)

	var current domain.ProductState
	if acq := trace.AcquisitionHistory; acq != nil {
		current = acquisitionState(unit, *acq)
		points = append(points, domain.TimelinePoint{
			EventType: domain.EventAcquisition,
			State:     current,
			Source:    acq,
		})
	} else {
		current = baselineState(unit)
	}

	modifications := sortedModifications(trace.ModificationHistory, trace.SaleInfo != nil)
	for i := range modifications {
		event := &modifications[i]
		next := Merge(current, PatchFromData(event.NewData))
		next.Timestamp = event.ChangedAt
		points = append(points, domain.TimelinePoint{
			EventType: domain.EventModification,
			State:     next,
			Changes:   ModificationDiff(event.OldData, event.NewData),
			Source:    event,
		})
		current = next
	}

	if sale := trace.SaleInfo; sale != nil {
		final := saleState(current, *sale)
		points = append(points, domain.TimelinePoint{
			EventType: domain.EventSale,
			State:     final,
			Changes:   saleDiff(current, final),
			Source:    sale,
		})
	}
	return points
}

// StateAt returns the state of the latest point at or before at; among
// points sharing that timestamp the one replayed last wins. States are a step
// function: nothing is interpolated between points.
func StateAt(timeline []domain.TimelinePoint, at time.Time) *domain.ProductState {
	var found *domain.ProductState
	for i := range timeline {
		ts := timeline[i].State.Timestamp
		if ts.After(at) {
			continue
		}
		if found != nil && ts.Before(found.Timestamp) {
			continue
		}
		state := timeline[i].State
		found = &state
	}
	return found
}

func acquisitionState(unit domain.ProductUnit, acq domain.AcquisitionRecord) domain.ProductState {
	price := acq.UnitCost
	return domain.ProductState{
		Timestamp: acq.TransactionDate,
		Status:    domain.UnitAvailable,
		Condition: unit.Condition,
		Location:  domain.LocationInventory,
		Owner:     acq.Supplier.Name,
		Price:     &price,
		Specs:     domain.SpecsFromUnit(unit),
		Metadata: map[string]any{
			"transaction_id":     acq.TransactionID.String(),
			"transaction_number": acq.TransactionNumber,
			"supplier_id":        acq.Supplier.ID.String(),
		},
	}
}

func baselineState(unit domain.ProductUnit) domain.ProductState {
	return domain.ProductState{
		Timestamp: unit.CreatedAt,
		Status:    unit.Status,
		Condition: unit.Condition,
		Location:  domain.LocationInventory,
		Metadata:  map[string]any{},
	}
}

func saleState(current domain.ProductState, sale domain.SaleRecord) domain.ProductState {
	next := current
	price := sale.SoldPrice
	next.Timestamp = sale.SoldAt
	next.Status = domain.UnitSold
	next.Location = domain.LocationCustomer
	next.Owner = sale.Customer.Name
	next.Price = &price
	next.Metadata = cloneMetadata(current.Metadata)
	next.Metadata["sale_id"] = sale.SaleID.String()
	next.Metadata["sale_number"] = sale.SaleNumber
	next.Metadata["payment_method"] = sale.PaymentMethod
	if sale.Salesperson != nil {
		next.Metadata["salesperson"] = *sale.Salesperson
	}
	return next
}

func saleDiff(prev, next domain.ProductState) domain.Diff {
	return domain.Diff{
		"status":   {From: string(prev.Status), To: string(next.Status)},
		"location": {From: string(prev.Location), To: string(next.Location)},
		"owner":    {From: prev.Owner, To: next.Owner},
		"price":    {From: priceValue(prev.Price), To: priceValue(next.Price)},
	}
}

const saleOperation = "sale"

func sortedModifications(events []domain.ModificationEvent, skipSaleRows bool) []domain.ModificationEvent {
	sorted := make([]domain.ModificationEvent, 0, len(events))
	for _, event := range events {
		if skipSaleRows && strings.EqualFold(strings.TrimSpace(event.OperationType), saleOperation) {
			continue
		}
		sorted = append(sorted, event)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ChangedAt.Before(sorted[j].ChangedAt)
	})
	return sorted
}
