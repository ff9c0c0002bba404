package service

import (
	"context"
	"fmt"
	"strings"

	"backoffice/internal/apperr"
	"backoffice/internal/barcode"
	"backoffice/internal/domain"
	"backoffice/internal/validate"
)

const maxGeneratedBarcodes = 100

// BarcodeCheck reports whether a code is a well-formed EAN-13.
type BarcodeCheck struct {
	Code   string `json:"code"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// CreateAcquisition registers a supplier delivery. Units without a barcode
// get one drawn from the barcode sequence; supplied barcodes must be valid
// EAN-13 codes.
func (s *Service) CreateAcquisition(ctx context.Context, input domain.AcquisitionInput) (domain.CreatedTransaction, error) {
	if err := validate.Struct(input); err != nil {
		return domain.CreatedTransaction{}, err
	}
	if input.TransactionDate != nil && input.TransactionDate.After(s.now()) {
		return domain.CreatedTransaction{}, apperr.New(apperr.CodeValidation, "validation failed").
			WithDetails(map[string]string{"transaction_date": "must not be in the future"})
	}

	units := make([]domain.AcquisitionUnitInput, len(input.Units))
	copy(units, input.Units)
	serials := make(map[string]struct{}, len(units))
	codes := make(map[string]struct{}, len(units))
	for i := range units {
		serial := strings.TrimSpace(units[i].SerialNumber)
		if _, dup := serials[serial]; dup {
			return domain.CreatedTransaction{}, apperr.New(apperr.CodeValidation, "duplicate serial number in acquisition").
				WithDetails(map[string]string{fmt.Sprintf("units[%d].serial_number", i): serial})
		}
		serials[serial] = struct{}{}
		if units[i].UnitCost.IsNegative() {
			return domain.CreatedTransaction{}, apperr.New(apperr.CodeValidation, "validation failed").
				WithDetails(map[string]string{fmt.Sprintf("units[%d].unit_cost", i): "must not be negative"})
		}

		code := ""
		if units[i].Barcode != nil {
			code = strings.TrimSpace(*units[i].Barcode)
		}
		if code == "" {
			generated, err := s.nextBarcode(ctx)
			if err != nil {
				return domain.CreatedTransaction{}, err
			}
			code = generated
		} else if err := checkBarcode(code, fmt.Sprintf("units[%d].barcode", i)); err != nil {
			return domain.CreatedTransaction{}, err
		}
		if _, dup := codes[code]; dup {
			return domain.CreatedTransaction{}, apperr.New(apperr.CodeValidation, "duplicate barcode in acquisition").
				WithDetails(map[string]string{fmt.Sprintf("units[%d].barcode", i): code})
		}
		codes[code] = struct{}{}
		units[i].Barcode = &code
	}
	input.Units = units
	input.SupplierName = strings.TrimSpace(input.SupplierName)
	input.SupplierPhone = normalizeNullable(input.SupplierPhone)
	input.Notes = normalizeNullable(input.Notes)
	input.ChangedBy = normalizeNullable(input.ChangedBy)

	created, err := s.store.CreateAcquisition(ctx, input)
	if err != nil {
		return domain.CreatedTransaction{}, s.storeError(ctx, "acquisition.create_failed", err)
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"transaction_number": created.TransactionNumber,
		"units":              len(created.UnitIDs),
	}), "acquisition.created")
	return created, nil
}

// ImportAcquisition records the rows of an intake sheet as one acquisition.
func (s *Service) ImportAcquisition(ctx context.Context, input domain.AcquisitionInput) (domain.CreatedTransaction, error) {
	if len(input.Units) == 0 {
		return domain.CreatedTransaction{}, apperr.New(apperr.CodeValidation, "import file has no data rows")
	}
	if strings.TrimSpace(input.TransactionType) == "" {
		input.TransactionType = "import"
	}
	return s.CreateAcquisition(ctx, input)
}

// GenerateBarcodes reserves count fresh in-store codes.
func (s *Service) GenerateBarcodes(ctx context.Context, count int) ([]string, error) {
	if count <= 0 || count > maxGeneratedBarcodes {
		return nil, apperr.New(apperr.CodeValidation, "count out of range").
			WithDetails(map[string]any{"field": "count", "min": 1, "max": maxGeneratedBarcodes})
	}
	codes := make([]string, 0, count)
	for range count {
		code, err := s.nextBarcode(ctx)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *Service) ValidateBarcode(code string) BarcodeCheck {
	code = strings.TrimSpace(code)
	check := BarcodeCheck{Code: code, Valid: true}
	if err := barcode.Validate(code); err != nil {
		check.Valid = false
		check.Reason = err.Error()
	}
	return check
}

func (s *Service) nextBarcode(ctx context.Context) (string, error) {
	seq, err := s.store.NextBarcodeSequence(ctx)
	if err != nil {
		return "", s.storeError(ctx, "barcode.sequence_failed", err)
	}
	code, err := barcode.Generate(s.barcodePrefix, seq)
	if err != nil {
		s.log.Error(ctx, "barcode.generate_failed", err)
		return "", apperr.Wrap(apperr.CodeInternal, err, "failed to generate barcode")
	}
	return code, nil
}

func checkBarcode(code, field string) error {
	if err := barcode.Validate(code); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "validation failed").
			WithDetails(map[string]string{field: err.Error()})
	}
	return nil
}
