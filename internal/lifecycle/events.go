package lifecycle

import (
	"fmt"
	"sort"
	"strings"

	"backoffice/internal/domain"
)

const (
	IconAcquisition  = "Package"
	IconModification = "Edit"
	IconSale         = "ShoppingCart"
)

// GenerateTimelineEvents flattens a trace into display events sorted by date.
func GenerateTimelineEvents(trace domain.TraceResult) []domain.TimelineEvent {
	events := make([]domain.TimelineEvent, 0, len(trace.ModificationHistory)+2)

	if acq := trace.AcquisitionHistory; acq != nil {
		events = append(events, domain.TimelineEvent{
			ID:          "acquisition-" + acq.TransactionID.String(),
			Type:        domain.EventAcquisition,
			Date:        acq.TransactionDate,
			Title:       "Acquired from " + acq.Supplier.Name,
			Description: fmt.Sprintf("Transaction %s, unit cost %s", acq.TransactionNumber, acq.UnitCost.StringFixed(2)),
			Icon:        IconAcquisition,
			Data:        acq,
		})
	}

	for i := range trace.ModificationHistory {
		event := trace.ModificationHistory[i]
		events = append(events, domain.TimelineEvent{
			ID:          "modification-" + event.ID.String(),
			Type:        domain.EventModification,
			Date:        event.ChangedAt,
			Title:       modificationTitle(event.OperationType),
			Description: modificationDescription(event),
			Icon:        IconModification,
			Data:        event,
		})
	}

	if sale := trace.SaleInfo; sale != nil {
		description := fmt.Sprintf("Sale %s for %s", sale.SaleNumber, sale.SoldPrice.StringFixed(2))
		if sale.PaymentMethod != "" {
			description += " via " + sale.PaymentMethod
		}
		events = append(events, domain.TimelineEvent{
			ID:          "sale-" + sale.SaleID.String(),
			Type:        domain.EventSale,
			Date:        sale.SoldAt,
			Title:       "Sold to " + sale.Customer.Name,
			Description: description,
			Icon:        IconSale,
			Data:        sale,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events
}

func modificationTitle(operation string) string {
	switch strings.ToLower(strings.TrimSpace(operation)) {
	case "insert", "create":
		return "Unit registered"
	case "update":
		return "Unit updated"
	case "delete":
		return "Unit removed"
	case "sale":
		return "Unit marked as sold"
	case "":
		return "Unit modified"
	}
	return "Unit " + strings.ToLower(operation)
}

func modificationDescription(event domain.ModificationEvent) string {
	if event.Note != nil && strings.TrimSpace(*event.Note) != "" {
		return strings.TrimSpace(*event.Note)
	}
	diff := ModificationDiff(event.OldData, event.NewData)
	if len(diff) == 0 {
		return "No field changes recorded"
	}
	keys := make([]string, 0, len(diff))
	for key := range diff {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return "Changed " + strings.Join(keys, ", ")
}
