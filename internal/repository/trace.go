package repository

import (
	"context"
	"errors"
	"fmt"

	"backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// FetchTrace gathers the raw lifecycle records of one unit. The acquisition,
// modification and sale lookups run concurrently once the unit is known.
func (r *Repository) FetchTrace(ctx context.Context, serial string) (*domain.TraceResult, error) {
	unit, err := r.GetUnitBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}

	var (
		acquisition   *domain.AcquisitionRecord
		modifications []domain.ModificationEvent
		sale          *domain.SaleRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		acquisition, err = r.acquisitionForUnit(gctx, unit.ID)
		return err
	})
	g.Go(func() error {
		var err error
		modifications, err = r.modificationsForUnit(gctx, unit.ID)
		return err
	})
	g.Go(func() error {
		var err error
		sale, err = r.saleForUnit(gctx, unit.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.TraceResult{
		UnitDetails:         *unit,
		AcquisitionHistory:  acquisition,
		ModificationHistory: modifications,
		SaleInfo:            sale,
	}, nil
}

func (r *Repository) acquisitionForUnit(ctx context.Context, unitID uuid.UUID) (*domain.AcquisitionRecord, error) {
	var (
		record   domain.AcquisitionRecord
		supplier domain.Supplier
	)
	err := r.pool.QueryRow(ctx, `
		SELECT
			t.id,
			t.transaction_number,
			t.transaction_type,
			t.status,
			t.transaction_date,
			t.notes,
			s.id,
			s.name,
			s.phone,
			s.email,
			i.unit_cost,
			i.total_cost,
			i.quantity
		FROM supplier_transaction_items i
		JOIN supplier_transactions t ON t.id = i.transaction_id
		JOIN suppliers s ON s.id = t.supplier_id
		WHERE $1 = ANY(i.product_unit_ids)
		ORDER BY i.created_at DESC
		LIMIT 1
	`, unitID).Scan(
		&record.TransactionID,
		&record.TransactionNumber,
		&record.TransactionType,
		&record.TransactionStatus,
		&record.TransactionDate,
		&record.Notes,
		&supplier.ID,
		&supplier.Name,
		&supplier.Phone,
		&supplier.Email,
		&record.UnitCost,
		&record.TotalCost,
		&record.Quantity,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch acquisition for unit %s: %w", unitID, err)
	}
	record.Supplier = supplier

	items, err := r.transactionItems(ctx, []uuid.UUID{record.TransactionID})
	if err != nil {
		return nil, err
	}
	record.Items = items
	return &record, nil
}

func (r *Repository) modificationsForUnit(ctx context.Context, unitID uuid.UUID) ([]domain.ModificationEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			id,
			product_unit_id,
			operation_type,
			changed_at,
			changed_by,
			old_data,
			new_data,
			note
		FROM product_unit_history
		WHERE product_unit_id = $1
		ORDER BY changed_at ASC, id
	`, unitID)
	if err != nil {
		return nil, fmt.Errorf("fetch modifications for unit %s: %w", unitID, err)
	}
	defer rows.Close()

	events := []domain.ModificationEvent{}
	for rows.Next() {
		var (
			event   domain.ModificationEvent
			oldJSON []byte
			newJSON []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.UnitID,
			&event.OperationType,
			&event.ChangedAt,
			&event.ChangedBy,
			&oldJSON,
			&newJSON,
			&event.Note,
		); err != nil {
			return nil, fmt.Errorf("scan modification: %w", err)
		}
		if event.OldData, err = decodeJSONMap(oldJSON); err != nil {
			return nil, fmt.Errorf("decode modification %s old_data: %w", event.ID, err)
		}
		if event.NewData, err = decodeJSONMap(newJSON); err != nil {
			return nil, fmt.Errorf("decode modification %s new_data: %w", event.ID, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modifications: %w", err)
	}
	return events, nil
}

func (r *Repository) saleForUnit(ctx context.Context, unitID uuid.UUID) (*domain.SaleRecord, error) {
	var (
		record   domain.SaleRecord
		customer domain.Customer
	)
	err := r.pool.QueryRow(ctx, `
		SELECT
			s.id,
			s.sale_number,
			si.sold_price,
			s.sold_at,
			c.id,
			c.name,
			c.customer_type,
			c.phone,
			c.email,
			s.salesperson,
			s.payment_method,
			s.payment_type
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN customers c ON c.id = s.customer_id
		WHERE si.product_unit_id = $1
		ORDER BY si.created_at DESC
		LIMIT 1
	`, unitID).Scan(
		&record.SaleID,
		&record.SaleNumber,
		&record.SoldPrice,
		&record.SoldAt,
		&customer.ID,
		&customer.Name,
		&customer.CustomerType,
		&customer.Phone,
		&customer.Email,
		&record.Salesperson,
		&record.PaymentMethod,
		&record.PaymentType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch sale for unit %s: %w", unitID, err)
	}
	record.Customer = customer

	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, product_unit_id, product_id, sold_price, quantity
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY created_at, id
	`, record.SaleID)
	if err != nil {
		return nil, fmt.Errorf("fetch sale lines %s: %w", record.SaleID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductUnitID, &line.ProductID, &line.SoldPrice, &line.Quantity); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		record.Items = append(record.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale lines: %w", err)
	}
	return &record, nil
}
