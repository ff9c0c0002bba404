package excel

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"backoffice/internal/domain"

	"github.com/xuri/excelize/v2"
)

const timelineSheet = "Timeline"

var timelineHeaders = []any{
	"Timestamp",
	"Event",
	"Status",
	"Condition",
	"Location",
	"Owner",
	"Price",
	"Color",
	"Storage",
	"RAM",
	"Battery",
	"Changes",
}

// WriteTimeline renders one row per timeline point into an xlsx workbook.
// The serial goes in the title row above the header.
func WriteTimeline(w io.Writer, serial string, points []domain.TimelinePoint) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", timelineSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetCellValue(timelineSheet, "A1", "Serial number"); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := f.SetCellValue(timelineSheet, "B1", serial); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := f.SetSheetRow(timelineSheet, "A2", &timelineHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, point := range points {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		row := timelineRow(point)
		if err := f.SetSheetRow(timelineSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+3, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func timelineRow(point domain.TimelinePoint) []any {
	state := point.State
	price := ""
	if state.Price != nil {
		price = state.Price.StringFixed(2)
	}
	battery := ""
	if state.Specs.BatteryLevel != nil {
		battery = fmt.Sprintf("%d%%", *state.Specs.BatteryLevel)
	}
	return []any{
		state.Timestamp.UTC().Format(time.RFC3339),
		string(point.EventType),
		string(state.Status),
		state.Condition,
		string(state.Location),
		state.Owner,
		price,
		deref(state.Specs.Color),
		deref(state.Specs.Storage),
		deref(state.Specs.RAM),
		battery,
		renderChanges(point.Changes),
	}
}

// renderChanges formats a diff as "key: from -> to" pairs in key order.
func renderChanges(diff domain.Diff) string {
	if len(diff) == 0 {
		return ""
	}
	keys := make([]string, 0, len(diff))
	for key := range diff {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		change := diff[key]
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", key, renderValue(change.From), renderValue(change.To)))
	}
	return strings.Join(parts, "; ")
}

func renderValue(value any) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprint(value)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
