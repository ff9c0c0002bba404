package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitSold      UnitStatus = "sold"
	UnitDamaged   UnitStatus = "damaged"
	UnitRepair    UnitStatus = "repair"
	UnitReserved  UnitStatus = "reserved"
)

func (s UnitStatus) Valid() bool {
	switch s {
	case UnitAvailable, UnitSold, UnitDamaged, UnitRepair, UnitReserved:
		return true
	}
	return false
}

type Location string

const (
	LocationSupplier  Location = "supplier"
	LocationInventory Location = "inventory"
	LocationCustomer  Location = "customer"
)

type EventType string

const (
	EventAcquisition  EventType = "acquisition"
	EventModification EventType = "modification"
	EventSale         EventType = "sale"
)

type Product struct {
	ID        uuid.UUID `json:"id"`
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductUnit struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"product_id"`
	Product      *Product   `json:"product,omitempty"`
	SerialNumber string     `json:"serial_number"`
	Barcode      *string    `json:"barcode,omitempty"`
	Color        *string    `json:"color,omitempty"`
	Storage      *string    `json:"storage,omitempty"`
	RAM          *string    `json:"ram,omitempty"`
	BatteryLevel *int       `json:"battery_level,omitempty"`
	Condition    string     `json:"condition"`
	Status       UnitStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type Supplier struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name" validate:"required"`
	Phone *string   `json:"phone,omitempty"`
	Email *string   `json:"email,omitempty"`
}

type Customer struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name" validate:"required"`
	CustomerType string    `json:"customer_type"`
	Phone        *string   `json:"phone,omitempty"`
	Email        *string   `json:"email,omitempty"`
}

// UnitRef is the slice of a unit the transaction search needs to match on.
type UnitRef struct {
	ID           uuid.UUID `json:"id"`
	SerialNumber string    `json:"serial_number"`
	Barcode      *string   `json:"barcode,omitempty"`
	ProductID    uuid.UUID `json:"product_id"`
}

type TransactionItem struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	Product       *Product        `json:"product,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	UnitIDs       []uuid.UUID     `json:"product_unit_ids"`
	EnrichedUnits []UnitRef       `json:"_enriched_units,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SupplierTransaction struct {
	ID                uuid.UUID         `json:"id"`
	TransactionNumber string            `json:"transaction_number"`
	TransactionType   string            `json:"transaction_type"`
	Status            string            `json:"status"`
	TransactionDate   time.Time         `json:"transaction_date"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	Notes             *string           `json:"notes,omitempty"`
	Supplier          *Supplier         `json:"supplier,omitempty"`
	Items             []TransactionItem `json:"items"`
	CreatedAt         time.Time         `json:"created_at"`
}

// AcquisitionRecord is the supplier transaction line that brought a unit into stock.
type AcquisitionRecord struct {
	TransactionID     uuid.UUID         `json:"transaction_id"`
	TransactionNumber string            `json:"transaction_number"`
	TransactionType   string            `json:"transaction_type"`
	TransactionStatus string            `json:"transaction_status"`
	TransactionDate   time.Time         `json:"transaction_date" validate:"required"`
	Supplier          Supplier          `json:"supplier"`
	UnitCost          decimal.Decimal   `json:"unit_cost"`
	TotalCost         decimal.Decimal   `json:"total_cost"`
	Quantity          int               `json:"quantity"`
	Notes             *string           `json:"notes,omitempty"`
	Items             []TransactionItem `json:"items,omitempty"`
}

// ModificationEvent is one append-only audit row for a unit.
type ModificationEvent struct {
	ID            uuid.UUID      `json:"id"`
	UnitID        uuid.UUID      `json:"product_unit_id"`
	OperationType string         `json:"operation_type"`
	ChangedAt     time.Time      `json:"changed_at" validate:"required"`
	ChangedBy     *string        `json:"changed_by,omitempty"`
	OldData       map[string]any `json:"old_data,omitempty"`
	NewData       map[string]any `json:"new_data,omitempty"`
	Note          *string        `json:"note,omitempty"`
}

type SaleLine struct {
	ID            uuid.UUID       `json:"id"`
	SaleID        uuid.UUID       `json:"sale_id"`
	ProductUnitID uuid.UUID       `json:"product_unit_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	SoldPrice     decimal.Decimal `json:"sold_price"`
	Quantity      int             `json:"quantity"`
}

type SaleRecord struct {
	SaleID        uuid.UUID       `json:"sale_id"`
	SaleNumber    string          `json:"sale_number"`
	SoldPrice     decimal.Decimal `json:"sold_price"`
	SoldAt        time.Time       `json:"sold_at" validate:"required"`
	Customer      Customer        `json:"customer"`
	Salesperson   *string         `json:"salesperson,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	PaymentType   string          `json:"payment_type"`
	Items         []SaleLine      `json:"items,omitempty"`
}

// TraceResult is everything known about one serial number, as fetched.
type TraceResult struct {
	UnitDetails         ProductUnit         `json:"unit_details"`
	AcquisitionHistory  *AcquisitionRecord  `json:"acquisition_history,omitempty" validate:"omitempty"`
	ModificationHistory []ModificationEvent `json:"modification_history" validate:"dive"`
	SaleInfo            *SaleRecord         `json:"sale_info,omitempty" validate:"omitempty"`
}

type Specs struct {
	Color        *string `json:"color,omitempty"`
	Storage      *string `json:"storage,omitempty"`
	RAM          *string `json:"ram,omitempty"`
	BatteryLevel *int    `json:"battery_level,omitempty"`
}

// SpecsFromUnit copies the physical attributes of a unit.
func SpecsFromUnit(unit ProductUnit) Specs {
	return Specs{
		Color:        unit.Color,
		Storage:      unit.Storage,
		RAM:          unit.RAM,
		BatteryLevel: unit.BatteryLevel,
	}
}

// ProductState is a derived point-in-time snapshot; it is never persisted.
type ProductState struct {
	Timestamp time.Time        `json:"timestamp"`
	Status    UnitStatus       `json:"status"`
	Condition string           `json:"condition"`
	Location  Location         `json:"location"`
	Owner     string           `json:"owner"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Specs     Specs            `json:"specs"`
	Metadata  map[string]any   `json:"metadata"`
}

type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

type Diff map[string]Change

type TimelinePoint struct {
	EventType EventType    `json:"event_type"`
	State     ProductState `json:"state"`
	Changes   Diff         `json:"changes,omitempty"`
	Source    any          `json:"event"`
}

type TimelineEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Date        time.Time `json:"date"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Data        any       `json:"data"`
}

type UnitListFilter struct {
	Search string
	Status UnitStatus
	Limit  int
	Offset int
}

type TransactionListFilter struct {
	TransactionType string
	Limit           int
	Offset          int
}

// UnitPatch is a sparse update; nil fields are left as they are.
type UnitPatch struct {
	Barcode      *string     `json:"barcode"`
	Color        *string     `json:"color"`
	Storage      *string     `json:"storage"`
	RAM          *string     `json:"ram"`
	BatteryLevel *int        `json:"battery_level" validate:"omitempty,min=0,max=100"`
	Condition    *string     `json:"condition"`
	Status       *UnitStatus `json:"status"`
}

func (p UnitPatch) Empty() bool {
	return p.Barcode == nil && p.Color == nil && p.Storage == nil && p.RAM == nil &&
		p.BatteryLevel == nil && p.Condition == nil && p.Status == nil
}

type AcquisitionUnitInput struct {
	Brand        string          `json:"brand" validate:"required"`
	Model        string          `json:"model" validate:"required"`
	SerialNumber string          `json:"serial_number" validate:"required"`
	Barcode      *string         `json:"barcode"`
	Color        *string         `json:"color"`
	Storage      *string         `json:"storage"`
	RAM          *string         `json:"ram"`
	BatteryLevel *int            `json:"battery_level" validate:"omitempty,min=0,max=100"`
	Condition    string          `json:"condition"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

type AcquisitionInput struct {
	SupplierName    string                 `json:"supplier_name" validate:"required"`
	SupplierPhone   *string                `json:"supplier_phone"`
	TransactionType string                 `json:"transaction_type"`
	TransactionDate *time.Time             `json:"transaction_date"`
	Notes           *string                `json:"notes"`
	ChangedBy       *string                `json:"changed_by"`
	Units           []AcquisitionUnitInput `json:"units" validate:"required,min=1,dive"`
}

type SaleLineInput struct {
	SerialNumber string          `json:"serial_number" validate:"required"`
	SoldPrice    decimal.Decimal `json:"sold_price"`
}

type SaleInput struct {
	CustomerName  string          `json:"customer_name" validate:"required"`
	CustomerType  string          `json:"customer_type"`
	CustomerPhone *string         `json:"customer_phone"`
	Salesperson   *string         `json:"salesperson"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
	PaymentType   string          `json:"payment_type"`
	SoldAt        *time.Time      `json:"sold_at"`
	Lines         []SaleLineInput `json:"lines" validate:"required,min=1,dive"`
}

type CreatedTransaction struct {
	TransactionID     uuid.UUID   `json:"transaction_id"`
	TransactionNumber string      `json:"transaction_number"`
	UnitIDs           []uuid.UUID `json:"unit_ids"`
}

type CreatedSale struct {
	SaleID     uuid.UUID `json:"sale_id"`
	SaleNumber string    `json:"sale_number"`
	Units      int       `json:"units"`
}
