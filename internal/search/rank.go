package search

import (
	"strings"

	"backoffice/internal/domain"
)

const (
	priorityNone = iota
	priorityLow
	priorityMedium
	priorityHigh
)

// Search keeps the transactions that match term, ordered exact serial or
// barcode hits first, then transaction number or supplier name, then
// product or partial serial, then status, type or notes. Each bucket keeps
// the input order. A blank term returns txs unchanged.
func Search(txs []domain.SupplierTransaction, term string) []domain.SupplierTransaction {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return txs
	}

	var exact, high, medium, low []domain.SupplierTransaction
	for _, tx := range txs {
		if exactUnitMatch(tx, term) {
			exact = append(exact, tx)
			continue
		}
		switch priority(tx, term) {
		case priorityHigh:
			high = append(high, tx)
		case priorityMedium:
			medium = append(medium, tx)
		case priorityLow:
			low = append(low, tx)
		}
	}

	out := make([]domain.SupplierTransaction, 0, len(exact)+len(high)+len(medium)+len(low))
	out = append(out, exact...)
	out = append(out, high...)
	out = append(out, medium...)
	return append(out, low...)
}

func exactUnitMatch(tx domain.SupplierTransaction, term string) bool {
	for _, item := range tx.Items {
		for _, unit := range item.EnrichedUnits {
			if strings.ToLower(unit.SerialNumber) == term {
				return true
			}
			if unit.Barcode != nil && strings.ToLower(*unit.Barcode) == term {
				return true
			}
		}
	}
	return false
}

func priority(tx domain.SupplierTransaction, term string) int {
	if contains(tx.TransactionNumber, term) {
		return priorityHigh
	}
	if tx.Supplier != nil && contains(tx.Supplier.Name, term) {
		return priorityHigh
	}

	for _, item := range tx.Items {
		if item.Product != nil && (contains(item.Product.Brand, term) || contains(item.Product.Model, term)) {
			return priorityMedium
		}
		for _, unit := range item.EnrichedUnits {
			if contains(unit.SerialNumber, term) {
				return priorityMedium
			}
			if unit.Barcode != nil && contains(*unit.Barcode, term) {
				return priorityMedium
			}
		}
	}

	if contains(tx.Status, term) || contains(tx.TransactionType, term) {
		return priorityLow
	}
	if tx.Notes != nil && contains(*tx.Notes, term) {
		return priorityLow
	}
	return priorityNone
}

func contains(field, term string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), term)
}
