package repository

import (
	"context"
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
	defaultTransactionType   = "purchase"
	defaultTransactionStatus = "completed"
	defaultCondition         = "new"
)

// CreateAcquisition records a supplier transaction and registers every unit
// it brings in. Units are grouped into one item per product and unit cost.
// Barcodes must already be resolved by the caller.
func (r *Repository) CreateAcquisition(ctx context.Context, input domain.AcquisitionInput) (domain.CreatedTransaction, error) {
	if len(input.Units) == 0 {
		return domain.CreatedTransaction{}, fmt.Errorf("units cannot be empty")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.CreatedTransaction{}, fmt.Errorf("begin acquisition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := r.now()
	txDate := now
	if input.TransactionDate != nil {
		txDate = input.TransactionDate.UTC()
	}
	txType := strings.TrimSpace(input.TransactionType)
	if txType == "" {
		txType = defaultTransactionType
	}

	supplierID, err := upsertSupplierTx(ctx, tx, input.SupplierName, input.SupplierPhone)
	if err != nil {
		return domain.CreatedTransaction{}, err
	}

	total := decimal.Zero
	for _, unit := range input.Units {
		total = total.Add(unit.UnitCost)
	}

	transactionID := uuid.New()
	transactionNumber := documentNumber("ST", txDate, transactionID)
	if _, err := tx.Exec(ctx, `
		INSERT INTO supplier_transactions (
			id,
			transaction_number,
			supplier_id,
			transaction_type,
			status,
			transaction_date,
			total_amount,
			notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, transactionID, transactionNumber, supplierID, txType, defaultTransactionStatus, txDate, total, input.Notes); err != nil {
		return domain.CreatedTransaction{}, fmt.Errorf("insert supplier transaction: %w", err)
	}

	type itemGroup struct {
		productID uuid.UUID
		unitCost  decimal.Decimal
		unitIDs   []uuid.UUID
	}
	groups := make([]*itemGroup, 0, len(input.Units))
	groupIndex := map[string]*itemGroup{}
	products := map[string]uuid.UUID{}
	created := domain.CreatedTransaction{
		TransactionID:     transactionID,
		TransactionNumber: transactionNumber,
		UnitIDs:           make([]uuid.UUID, 0, len(input.Units)),
	}

	for _, in := range input.Units {
		productKey := strings.ToLower(strings.TrimSpace(in.Brand)) + "\x00" + strings.ToLower(strings.TrimSpace(in.Model))
		productID, ok := products[productKey]
		if !ok {
			productID, err = upsertProductTx(ctx, tx, in.Brand, in.Model)
			if err != nil {
				return domain.CreatedTransaction{}, err
			}
			products[productKey] = productID
		}

		unit := domain.ProductUnit{
			ID:           uuid.New(),
			ProductID:    productID,
			SerialNumber: strings.TrimSpace(in.SerialNumber),
			Barcode:      in.Barcode,
			Color:        in.Color,
			Storage:      in.Storage,
			RAM:          in.RAM,
			BatteryLevel: in.BatteryLevel,
			Condition:    strings.TrimSpace(in.Condition),
			Status:       domain.UnitAvailable,
		}
		if unit.Condition == "" {
			unit.Condition = defaultCondition
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_units (
				id,
				product_id,
				serial_number,
				barcode,
				color,
				storage,
				ram,
				battery_level,
				condition,
				status,
				created_at,
				updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		`,
			unit.ID,
			unit.ProductID,
			unit.SerialNumber,
			unit.Barcode,
			unit.Color,
			unit.Storage,
			unit.RAM,
			unit.BatteryLevel,
			unit.Condition,
			string(unit.Status),
			now,
		); err != nil {
			if isUniqueViolation(err) {
				return domain.CreatedTransaction{}, fmt.Errorf("insert unit %q: %w", unit.SerialNumber, ErrConflict)
			}
			return domain.CreatedTransaction{}, fmt.Errorf("insert unit %q: %w", unit.SerialNumber, err)
		}

		if err := insertHistoryTx(ctx, tx, insertHistory(unit, txDate, input.ChangedBy)); err != nil {
			return domain.CreatedTransaction{}, err
		}

		groupKey := productID.String() + "\x00" + in.UnitCost.String()
		group, ok := groupIndex[groupKey]
		if !ok {
			group = &itemGroup{productID: productID, unitCost: in.UnitCost}
			groupIndex[groupKey] = group
			groups = append(groups, group)
		}
		group.unitIDs = append(group.unitIDs, unit.ID)
		created.UnitIDs = append(created.UnitIDs, unit.ID)
	}

	for _, group := range groups {
		quantity := len(group.unitIDs)
		lineTotal := group.unitCost.Mul(decimal.NewFromInt(int64(quantity)))
		if _, err := tx.Exec(ctx, `
			INSERT INTO supplier_transaction_items (
				id,
				transaction_id,
				product_id,
				quantity,
				unit_cost,
				total_cost,
				product_unit_ids,
				created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New(), transactionID, group.productID, quantity, group.unitCost, lineTotal, toPgUUIDs(group.unitIDs), now); err != nil {
			return domain.CreatedTransaction{}, fmt.Errorf("insert transaction item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CreatedTransaction{}, fmt.Errorf("commit acquisition tx: %w", err)
	}
	return created, nil
}

// ListTransactions returns supplier transactions newest first, each with its
// supplier and items.
func (r *Repository) ListTransactions(ctx context.Context, filter domain.TransactionListFilter) ([]domain.SupplierTransaction, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)

	rows, err := r.pool.Query(ctx, `
		SELECT
			t.id,
			t.transaction_number,
			t.transaction_type,
			t.status,
			t.transaction_date,
			t.total_amount,
			t.notes,
			t.created_at,
			s.id,
			s.name,
			s.phone,
			s.email
		FROM supplier_transactions t
		JOIN suppliers s ON s.id = t.supplier_id
		WHERE ($1 = '' OR t.transaction_type = $1)
		ORDER BY t.transaction_date DESC, t.id
		LIMIT $2 OFFSET $3
	`, strings.TrimSpace(filter.TransactionType), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]domain.SupplierTransaction, 0, limit)
	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var (
			t        domain.SupplierTransaction
			supplier domain.Supplier
		)
		if err := rows.Scan(
			&t.ID,
			&t.TransactionNumber,
			&t.TransactionType,
			&t.Status,
			&t.TransactionDate,
			&t.TotalAmount,
			&t.Notes,
			&t.CreatedAt,
			&supplier.ID,
			&supplier.Name,
			&supplier.Phone,
			&supplier.Email,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Supplier = &supplier
		t.Items = []domain.TransactionItem{}
		txs = append(txs, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	if len(ids) == 0 {
		return txs, nil
	}

	items, err := r.transactionItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	byTransaction := make(map[uuid.UUID][]domain.TransactionItem, len(ids))
	for _, item := range items {
		byTransaction[item.TransactionID] = append(byTransaction[item.TransactionID], item)
	}
	for i := range txs {
		if list, ok := byTransaction[txs[i].ID]; ok {
			txs[i].Items = list
		}
	}
	return txs, nil
}

func (r *Repository) transactionItems(ctx context.Context, transactionIDs []uuid.UUID) ([]domain.TransactionItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			i.id,
			i.transaction_id,
			i.product_id,
			i.quantity,
			i.unit_cost,
			i.total_cost,
			i.product_unit_ids,
			i.created_at,
			p.id,
			p.brand,
			p.model,
			p.created_at
		FROM supplier_transaction_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.transaction_id = ANY($1)
		ORDER BY i.created_at, i.id
	`, toPgUUIDs(transactionIDs))
	if err != nil {
		return nil, fmt.Errorf("list transaction items: %w", err)
	}
	defer rows.Close()

	var items []domain.TransactionItem
	for rows.Next() {
		item, err := scanTransactionItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction items: %w", err)
	}
	return items, nil
}

func scanTransactionItem(row pgx.Row) (domain.TransactionItem, error) {
	var (
		item    domain.TransactionItem
		product domain.Product
		unitIDs []pgtype.UUID
	)
	if err := row.Scan(
		&item.ID,
		&item.TransactionID,
		&item.ProductID,
		&item.Quantity,
		&item.UnitCost,
		&item.TotalCost,
		&unitIDs,
		&item.CreatedAt,
		&product.ID,
		&product.Brand,
		&product.Model,
		&product.CreatedAt,
	); err != nil {
		return domain.TransactionItem{}, fmt.Errorf("scan transaction item: %w", err)
	}
	item.UnitIDs = fromPgUUIDs(unitIDs)
	item.Product = &product
	return item, nil
}

func upsertSupplierTx(ctx context.Context, tx pgx.Tx, name string, phone *string) (uuid.UUID, error) {
	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
		INSERT INTO suppliers (id, name, phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET phone = COALESCE(EXCLUDED.phone, suppliers.phone)
		RETURNING id
	`, uuid.New(), strings.TrimSpace(name), phone).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("upsert supplier %q: %w", name, err)
	}
	return id, nil
}

func upsertProductTx(ctx context.Context, tx pgx.Tx, brand, model string) (uuid.UUID, error) {
	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
		INSERT INTO products (id, brand, model)
		VALUES ($1, $2, $3)
		ON CONFLICT (brand, model) DO UPDATE SET brand = EXCLUDED.brand
		RETURNING id
	`, uuid.New(), strings.TrimSpace(brand), strings.TrimSpace(model)).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("upsert product %s %s: %w", brand, model, err)
	}
	return id, nil
}

// documentNumber renders a human-readable reference such as ST-20240115-1A2B3C4D.
func documentNumber(prefix string, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), strings.ToUpper(id.String()[:8]))
}
