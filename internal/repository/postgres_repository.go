package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnitUnavailable = errors.New("unit not available")
	ErrOutOfOrder      = errors.New("date precedes recorded history")
)

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const unitColumns = `
	u.id,
	u.product_id,
	u.serial_number,
	u.barcode,
	u.color,
	u.storage,
	u.ram,
	u.battery_level,
	u.condition,
	u.status,
	u.created_at,
	u.updated_at,
	p.id,
	p.brand,
	p.model,
	p.created_at
`

func (r *Repository) GetUnitBySerial(ctx context.Context, serial string) (*domain.ProductUnit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+unitColumns+`
		FROM product_units u
		JOIN products p ON p.id = u.product_id
		WHERE u.serial_number = $1
	`, strings.TrimSpace(serial))
	unit, err := scanUnitRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get unit %q: %w", serial, err)
	}
	return &unit, nil
}

func (r *Repository) GetUnitByID(ctx context.Context, id uuid.UUID) (*domain.ProductUnit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+unitColumns+`
		FROM product_units u
		JOIN products p ON p.id = u.product_id
		WHERE u.id = $1
	`, id)
	unit, err := scanUnitRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get unit %s: %w", id, err)
	}
	return &unit, nil
}

func (r *Repository) ListUnits(ctx context.Context, filter domain.UnitListFilter) ([]domain.ProductUnit, error) {
	limit := normalizeLimit(filter.Limit)
	offset := normalizeOffset(filter.Offset)
	search := strings.TrimSpace(filter.Search)

	rows, err := r.pool.Query(ctx, `
		SELECT `+unitColumns+`
		FROM product_units u
		JOIN products p ON p.id = u.product_id
		WHERE ($1 = '' OR
			u.serial_number ILIKE '%' || $1 || '%' OR
			COALESCE(u.barcode, '') ILIKE '%' || $1 || '%' OR
			p.brand ILIKE '%' || $1 || '%' OR
			p.model ILIKE '%' || $1 || '%')
		AND ($2 = '' OR u.status = $2)
		ORDER BY u.created_at DESC, u.id
		LIMIT $3 OFFSET $4
	`, search, string(filter.Status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	units := make([]domain.ProductUnit, 0, limit)
	for rows.Next() {
		unit, err := scanUnitRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

// UnitsByIDs resolves serial and barcode for a batch of unit ids. Unknown
// ids are absent from the result.
func (r *Repository) UnitsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UnitRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, serial_number, barcode, product_id
		FROM product_units
		WHERE id = ANY($1)
	`, toPgUUIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("units by ids: %w", err)
	}
	defer rows.Close()

	refs := make([]domain.UnitRef, 0, len(ids))
	for rows.Next() {
		var ref domain.UnitRef
		if err := rows.Scan(&ref.ID, &ref.SerialNumber, &ref.Barcode, &ref.ProductID); err != nil {
			return nil, fmt.Errorf("scan unit ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unit refs: %w", err)
	}
	return refs, nil
}

// PatchUnit applies a sparse update and records an update history row
// holding only the keys whose values changed.
func (r *Repository) PatchUnit(
	ctx context.Context,
	id uuid.UUID,
	patch domain.UnitPatch,
	actor *string,
	note *string,
) (*domain.ProductUnit, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin patch unit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+unitColumns+`
		FROM product_units u
		JOIN products p ON p.id = u.product_id
		WHERE u.id = $1
		FOR UPDATE OF u
	`, id)
	unit, err := scanUnitRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load unit for patch: %w", err)
	}

	if unit.Status == domain.UnitSold {
		return nil, fmt.Errorf("patch unit %s: unit is sold: %w", id, ErrUnitUnavailable)
	}

	oldData, newData := applyUnitPatch(&unit, patch)
	if len(newData) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit patch unit tx: %w", err)
		}
		return &unit, nil
	}

	now := r.now()
	if _, err := tx.Exec(ctx, `
		UPDATE product_units
		SET
			barcode = $2,
			color = $3,
			storage = $4,
			ram = $5,
			battery_level = $6,
			condition = $7,
			status = $8,
			updated_at = $9
		WHERE id = $1
	`,
		id,
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
			return nil, fmt.Errorf("update unit %s: %w", id, ErrConflict)
		}
		return nil, fmt.Errorf("update unit %s: %w", id, err)
	}
	unit.UpdatedAt = now

	if err := insertHistoryTx(ctx, tx, historyRow{
		UnitID:    id,
		Operation: "update",
		ChangedAt: now,
		ChangedBy: actor,
		OldData:   oldData,
		NewData:   newData,
		Note:      note,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit patch unit tx: %w", err)
	}
	return &unit, nil
}

func applyUnitPatch(unit *domain.ProductUnit, patch domain.UnitPatch) (map[string]any, map[string]any) {
	oldData := map[string]any{}
	newData := map[string]any{}

	setString := func(key string, target **string, value *string) {
		if value == nil {
			return
		}
		trimmed := strings.TrimSpace(*value)
		var next *string
		if trimmed != "" {
			next = &trimmed
		}
		if equalStringPtr(*target, next) {
			return
		}
		oldData[key] = stringOrNil(*target)
		newData[key] = stringOrNil(next)
		*target = next
	}

	setString("barcode", &unit.Barcode, patch.Barcode)
	setString("color", &unit.Color, patch.Color)
	setString("storage", &unit.Storage, patch.Storage)
	setString("ram", &unit.RAM, patch.RAM)

	if patch.BatteryLevel != nil && (unit.BatteryLevel == nil || *unit.BatteryLevel != *patch.BatteryLevel) {
		if unit.BatteryLevel != nil {
			oldData["battery_level"] = *unit.BatteryLevel
		} else {
			oldData["battery_level"] = nil
		}
		level := *patch.BatteryLevel
		newData["battery_level"] = level
		unit.BatteryLevel = &level
	}
	if patch.Condition != nil {
		condition := strings.TrimSpace(*patch.Condition)
		if condition != "" && condition != unit.Condition {
			oldData["condition"] = unit.Condition
			newData["condition"] = condition
			unit.Condition = condition
		}
	}
	if patch.Status != nil && *patch.Status != unit.Status {
		oldData["status"] = string(unit.Status)
		newData["status"] = string(*patch.Status)
		unit.Status = *patch.Status
	}
	return oldData, newData
}

type historyRow struct {
	UnitID    uuid.UUID
	Operation string
	ChangedAt time.Time
	ChangedBy *string
	OldData   map[string]any
	NewData   map[string]any
	Note      *string
}

// insertHistory is the audit row for a unit entering stock, dated with its
// acquisition.
func insertHistory(unit domain.ProductUnit, txDate time.Time, actor *string) historyRow {
	return historyRow{
		UnitID:    unit.ID,
		Operation: "insert",
		ChangedAt: txDate,
		ChangedBy: actor,
		NewData:   unitSnapshot(unit),
	}
}

func saleHistory(unitID uuid.UUID, from domain.UnitStatus, soldAt time.Time, actor *string) historyRow {
	return historyRow{
		UnitID:    unitID,
		Operation: "sale",
		ChangedAt: soldAt,
		ChangedBy: actor,
		OldData:   map[string]any{"status": string(from)},
		NewData:   map[string]any{"status": string(domain.UnitSold)},
	}
}

func insertHistoryTx(ctx context.Context, tx pgx.Tx, row historyRow) error {
	oldJSON, err := jsonParam(row.OldData)
	if err != nil {
		return fmt.Errorf("encode history old_data: %w", err)
	}
	newJSON, err := jsonParam(row.NewData)
	if err != nil {
		return fmt.Errorf("encode history new_data: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO product_unit_history (
			id,
			product_unit_id,
			operation_type,
			changed_at,
			changed_by,
			old_data,
			new_data,
			note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.New(), row.UnitID, row.Operation, row.ChangedAt, row.ChangedBy, oldJSON, newJSON, row.Note); err != nil {
		return fmt.Errorf("insert unit history: %w", err)
	}
	return nil
}

// NextBarcodeSequence draws the next in-store barcode serial.
func (r *Repository) NextBarcodeSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, "SELECT nextval('product_unit_barcode_seq')").Scan(&seq); err != nil {
		return 0, fmt.Errorf("next barcode sequence: %w", err)
	}
	return seq, nil
}

func scanUnitRow(row pgx.Row) (domain.ProductUnit, error) {
	var (
		unit    domain.ProductUnit
		product domain.Product
		battery pgtype.Int4
		status  string
	)
	if err := row.Scan(
		&unit.ID,
		&unit.ProductID,
		&unit.SerialNumber,
		&unit.Barcode,
		&unit.Color,
		&unit.Storage,
		&unit.RAM,
		&battery,
		&unit.Condition,
		&status,
		&unit.CreatedAt,
		&unit.UpdatedAt,
		&product.ID,
		&product.Brand,
		&product.Model,
		&product.CreatedAt,
	); err != nil {
		return domain.ProductUnit{}, err
	}
	if battery.Valid {
		value := int(battery.Int32)
		unit.BatteryLevel = &value
	}
	unit.Status = domain.UnitStatus(status)
	unit.Product = &product
	return unit, nil
}

func unitSnapshot(unit domain.ProductUnit) map[string]any {
	snapshot := map[string]any{
		"serial_number": unit.SerialNumber,
		"condition":     unit.Condition,
		"status":        string(unit.Status),
	}
	if unit.Barcode != nil {
		snapshot["barcode"] = *unit.Barcode
	}
	if unit.Color != nil {
		snapshot["color"] = *unit.Color
	}
	if unit.Storage != nil {
		snapshot["storage"] = *unit.Storage
	}
	if unit.RAM != nil {
		snapshot["ram"] = *unit.RAM
	}
	if unit.BatteryLevel != nil {
		snapshot["battery_level"] = *unit.BatteryLevel
	}
	return snapshot
}

func decodeJSONMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func jsonParam(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func toPgUUIDs(ids []uuid.UUID) []pgtype.UUID {
	out := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		out[i] = pgtype.UUID{Bytes: id, Valid: true}
	}
	return out
}

func fromPgUUIDs(ids []pgtype.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id.Valid {
			out = append(out, uuid.UUID(id.Bytes))
		}
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func stringOrNil(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
