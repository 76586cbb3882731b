// Command soundingprobe fetches one sounding from the external archive,
// prints the parsed table, and reports the integrated precipitable water
// vapor. It is an operator tool for checking that the archive, the parser,
// and the derived columns agree before scheduling a backfill.
//
// Usage:
//
//	go run ./cmd/soundingprobe -station 45004 -time 2024-03-05T12:00:00Z
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/sounding-data-service/internal/adapter/uwyo"
	"github.com/couchcryptid/sounding-data-service/internal/config"
	"github.com/couchcryptid/sounding-data-service/internal/domain"
	"github.com/couchcryptid/sounding-data-service/internal/observability"
)

func main() {
	station := flag.String("station", "", "external station code (required)")
	when := flag.String("time", "", "observation time, RFC 3339 (default: most recent 00Z/12Z)")
	minHeight := flag.Float64("min-height", 0, "minimum height in m for the PWV integral")
	maxRows := flag.Int("max-rows", 15, "table rows to print, 0 for all")
	flag.Parse()

	if *station == "" {
		fmt.Fprintln(os.Stderr, "-station is required")
		flag.Usage()
		os.Exit(2)
	}

	target, err := resolveTime(*when)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -time: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	client := uwyo.NewClient(cfg, observability.NewLogger(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	payload, err := client.FetchSounding(ctx, *station, target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch failed: %v\n", err)
		os.Exit(1)
	}
	if payload == nil || payload.RowCount == 0 {
		fmt.Printf("no sounding for station %s at %s\n", *station, target.Format(time.RFC3339))
		os.Exit(0)
	}

	fmt.Printf("station: %s\n", payload.StationName)
	fmt.Printf("time:    %s\n", target.Format(time.RFC3339))
	fmt.Printf("rows:    %d\n\n", payload.RowCount)

	printTable(payload, *maxRows)

	if pwv := domain.ComputePWV(payload.Columns, payload.Rows, *minHeight); pwv != nil {
		fmt.Printf("\nPWV (min height %.0fm): %.2f mm\n", *minHeight, *pwv)
	} else {
		fmt.Println("\nPWV: not computable (missing HGHT/ABSH or too few samples)")
	}
}

// resolveTime parses the -time flag, defaulting to the most recent synoptic
// hour (00Z or 12Z) that is at least two hours old, since fresh soundings
// take a while to appear in the archive.
func resolveTime(raw string) (time.Time, error) {
	if raw != "" {
		return time.Parse(time.RFC3339, raw)
	}
	now := time.Now().UTC().Add(-2 * time.Hour)
	hour := 0
	if now.Hour() >= 12 {
		hour = 12
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC), nil
}

func printTable(payload *domain.SoundingPayload, maxRows int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)

	for i, col := range payload.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w, "\t")

	rows := payload.Rows
	if maxRows > 0 && maxRows < len(rows) {
		rows = rows[:maxRows]
	}
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, cell.Render())
		}
		fmt.Fprintln(w, "\t")
	}
	w.Flush()

	if maxRows > 0 && len(payload.Rows) > maxRows {
		fmt.Printf("... %d more rows\n", len(payload.Rows)-maxRows)
	}
}
