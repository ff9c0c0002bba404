package excel

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"backoffice/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"serial":         "serial_number",
	"serial number":  "serial_number",
	"serial no":      "serial_number",
	"sn":             "serial_number",
	"imei":           "serial_number",
	"barcode":        "barcode",
	"ean":            "barcode",
	"ean13":          "barcode",
	"brand":          "brand",
	"make":           "brand",
	"manufacturer":   "brand",
	"model":          "model",
	"product":        "model",
	"color":          "color",
	"colour":         "color",
	"storage":        "storage",
	"capacity":       "storage",
	"ram":            "ram",
	"memory":         "ram",
	"battery":        "battery_level",
	"battery level":  "battery_level",
	"battery %":      "battery_level",
	"battery health": "battery_level",
	"condition":      "condition",
	"grade":          "condition",
	"unit cost":      "unit_cost",
	"cost":           "unit_cost",
	"buy price":      "unit_cost",
	"purchase price": "unit_cost",
}

var requiredColumns = []string{"serial_number", "brand", "model"}

// ParseUnitRows reads the first sheet of a stock-intake workbook. Rows with a
// blank serial number are skipped.
func ParseUnitRows(reader io.Reader) ([]domain.AcquisitionUnitInput, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}

	colMap := mapColumns(rows[0])
	for _, column := range requiredColumns {
		if _, ok := colMap[column]; !ok {
			return nil, fmt.Errorf("missing required column: %s", column)
		}
	}

	result := make([]domain.AcquisitionUnitInput, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		serial := strings.TrimSpace(readCell(cells, colMap["serial_number"]))
		if serial == "" {
			continue
		}

		unit := domain.AcquisitionUnitInput{
			SerialNumber: serial,
			Brand:        strings.TrimSpace(readCell(cells, colMap["brand"])),
			Model:        strings.TrimSpace(readCell(cells, colMap["model"])),
			Barcode:      optionalCell(cells, colMap, "barcode"),
			Color:        optionalCell(cells, colMap, "color"),
			Storage:      optionalCell(cells, colMap, "storage"),
			RAM:          optionalCell(cells, colMap, "ram"),
		}
		if unit.Brand == "" || unit.Model == "" {
			return nil, fmt.Errorf("row %d: brand and model are required", index+1)
		}
		if condition := optionalCell(cells, colMap, "condition"); condition != nil {
			unit.Condition = strings.ToLower(*condition)
		}

		if raw := optionalCell(cells, colMap, "battery_level"); raw != nil {
			level, err := parseInt(strings.TrimSuffix(*raw, "%"))
			if err != nil {
				return nil, fmt.Errorf("row %d invalid battery level: %w", index+1, err)
			}
			if level < 0 || level > 100 {
				return nil, fmt.Errorf("row %d invalid battery level: must be between 0 and 100", index+1)
			}
			unit.BatteryLevel = &level
		}

		if raw := optionalCell(cells, colMap, "unit_cost"); raw != nil {
			cost, err := parseDecimal(*raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid unit cost: %w", index+1, err)
			}
			unit.UnitCost = cost
		}

		result = append(result, unit)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("excel file has no valid data rows")
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func optionalCell(row []string, colMap map[string]int, column string) *string {
	idx, ok := colMap[column]
	if !ok {
		return nil
	}
	value := strings.TrimSpace(readCell(row, idx))
	if value == "" {
		return nil
	}
	return &value
}

func parseInt(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}

	asFloat, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, fmt.Errorf("value is empty")
	}
	parsed, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	if parsed.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return parsed, nil
}
