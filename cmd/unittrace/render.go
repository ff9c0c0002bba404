package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"backoffice/internal/domain"
	"backoffice/internal/excel"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatXLSX = "xlsx"
)

type timelineSource interface {
	Timeline(ctx context.Context, serial string) ([]domain.TimelinePoint, error)
	StateAt(ctx context.Context, serial string, at time.Time) (*domain.ProductState, error)
}

func run(ctx context.Context, src timelineSource, opts options, out io.Writer) error {
	if opts.at != "" {
		at, err := parseInstant(opts.at)
		if err != nil {
			return err
		}
		state, err := src.StateAt(ctx, opts.serial, at)
		if err != nil {
			return err
		}
		if opts.format == formatJSON {
			return writeJSON(out, state)
		}
		return writeState(out, *state)
	}

	points, err := src.Timeline(ctx, opts.serial)
	if err != nil {
		return err
	}
	switch opts.format {
	case formatJSON:
		return writeJSON(out, points)
	case formatXLSX:
		return excel.WriteTimeline(out, opts.serial, points)
	default:
		return writeTimeline(out, points)
	}
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeTimeline(out io.Writer, points []domain.TimelinePoint) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tEVENT\tSTATUS\tLOCATION\tOWNER\tCHANGES")
	for _, point := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			point.State.Timestamp.UTC().Format("2006-01-02 15:04"),
			point.EventType,
			point.State.Status,
			point.State.Location,
			dash(point.State.Owner),
			changeSummary(point.Changes),
		)
	}
	return tw.Flush()
}

func writeState(out io.Writer, state domain.ProductState) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	price := "-"
	if state.Price != nil {
		price = state.Price.StringFixed(2)
	}
	rows := [][2]string{
		{"timestamp", state.Timestamp.UTC().Format("2006-01-02 15:04")},
		{"status", string(state.Status)},
		{"condition", dash(state.Condition)},
		{"location", string(state.Location)},
		{"owner", dash(state.Owner)},
		{"price", price},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

func changeSummary(changes domain.Diff) string {
	if len(changes) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(changes))
	for key := range changes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
