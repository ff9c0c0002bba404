package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	defaultCustomerType = "individual"
	defaultPaymentType  = "full"
)

// CreateSale sells the listed units in one transaction. Every unit must be
// available or reserved; anything else aborts the whole sale.
func (r *Repository) CreateSale(ctx context.Context, input domain.SaleInput) (domain.CreatedSale, error) {
	if len(input.Lines) == 0 {
		return domain.CreatedSale{}, fmt.Errorf("lines cannot be empty")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.CreatedSale{}, fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := r.now()
	soldAt := now
	if input.SoldAt != nil {
		soldAt = input.SoldAt.UTC()
	}

	customerID, err := upsertCustomerTx(ctx, tx, input)
	if err != nil {
		return domain.CreatedSale{}, err
	}

	type saleUnit struct {
		unitID    uuid.UUID
		productID uuid.UUID
		status    domain.UnitStatus
		price     decimal.Decimal
	}
	units := make([]saleUnit, 0, len(input.Lines))
	total := decimal.Zero
	for _, line := range input.Lines {
		serial := strings.TrimSpace(line.SerialNumber)
		var (
			su     saleUnit
			status string
		)
		err := tx.QueryRow(ctx, `
			SELECT id, product_id, status
			FROM product_units
			WHERE serial_number = $1
			FOR UPDATE
		`, serial).Scan(&su.unitID, &su.productID, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.CreatedSale{}, fmt.Errorf("unit %q: %w", serial, ErrNotFound)
			}
			return domain.CreatedSale{}, fmt.Errorf("load unit %q for sale: %w", serial, err)
		}
		su.status = domain.UnitStatus(status)
		if su.status != domain.UnitAvailable && su.status != domain.UnitReserved {
			return domain.CreatedSale{}, fmt.Errorf("unit %q is %s: %w", serial, su.status, ErrUnitUnavailable)
		}
		var lastChange pgtype.Timestamptz
		if err := tx.QueryRow(ctx, `
			SELECT max(changed_at)
			FROM product_unit_history
			WHERE product_unit_id = $1
		`, su.unitID).Scan(&lastChange); err != nil {
			return domain.CreatedSale{}, fmt.Errorf("load last change of unit %q: %w", serial, err)
		}
		if err := checkSaleOrder(serial, soldAt, lastChange); err != nil {
			return domain.CreatedSale{}, err
		}
		su.price = line.SoldPrice
		total = total.Add(line.SoldPrice)
		units = append(units, su)
	}

	paymentType := strings.TrimSpace(input.PaymentType)
	if paymentType == "" {
		paymentType = defaultPaymentType
	}
	saleID := uuid.New()
	saleNumber := documentNumber("SL", soldAt, saleID)
	if _, err := tx.Exec(ctx, `
		INSERT INTO sales (
			id,
			sale_number,
			customer_id,
			salesperson,
			payment_method,
			payment_type,
			total_amount,
			sold_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, saleID, saleNumber, customerID, input.Salesperson, strings.TrimSpace(input.PaymentMethod), paymentType, total, soldAt); err != nil {
		return domain.CreatedSale{}, fmt.Errorf("insert sale: %w", err)
	}

	for _, su := range units {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sale_items (
				id,
				sale_id,
				product_unit_id,
				product_id,
				sold_price,
				quantity,
				created_at
			) VALUES ($1, $2, $3, $4, $5, 1, $6)
		`, uuid.New(), saleID, su.unitID, su.productID, su.price, now); err != nil {
			return domain.CreatedSale{}, fmt.Errorf("insert sale item: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE product_units
			SET status = $2, updated_at = $3
			WHERE id = $1
		`, su.unitID, string(domain.UnitSold), now); err != nil {
			return domain.CreatedSale{}, fmt.Errorf("mark unit sold: %w", err)
		}
		if err := insertHistoryTx(ctx, tx, saleHistory(su.unitID, su.status, soldAt, input.Salesperson)); err != nil {
			return domain.CreatedSale{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CreatedSale{}, fmt.Errorf("commit sale tx: %w", err)
	}
	return domain.CreatedSale{SaleID: saleID, SaleNumber: saleNumber, Units: len(units)}, nil
}

func upsertCustomerTx(ctx context.Context, tx pgx.Tx, input domain.SaleInput) (uuid.UUID, error) {
	name := strings.TrimSpace(input.CustomerName)
	customerType := strings.TrimSpace(input.CustomerType)
	if customerType == "" {
		customerType = defaultCustomerType
	}

	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM customers
		WHERE name = $1 AND COALESCE(phone, '') = COALESCE($2, '')
	`, name, input.CustomerPhone).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("query customer %q: %w", name, err)
	}

	id = uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO customers (id, name, customer_type, phone)
		VALUES ($1, $2, $3, $4)
	`, id, name, customerType, input.CustomerPhone); err != nil {
		return uuid.Nil, fmt.Errorf("insert customer %q: %w", name, err)
	}
	return id, nil
}

// checkSaleOrder refuses a sale dated before the unit's latest audit row, so
// the sale stays the last point of the unit's history.
func checkSaleOrder(serial string, soldAt time.Time, lastChange pgtype.Timestamptz) error {
	if lastChange.Valid && soldAt.Before(lastChange.Time) {
		return fmt.Errorf("unit %q sold_at %s precedes last change %s: %w",
			serial, soldAt.Format(time.RFC3339), lastChange.Time.UTC().Format(time.RFC3339), ErrOutOfOrder)
	}
	return nil
}
