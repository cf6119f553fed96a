// Package memtier parses the text report printed by memtier_benchmark.
package memtier

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field indexes into Stats, in the column order of the "Totals" row.
const (
	OpsPerSec = iota
	HitRatio
	MissRatio
	AvgLatency
	P50Latency
	P99Latency
	P999Latency
	KBPerSec

	NumFields
)

var (
	// ErrMissingSection is returned when the report lacks a "Gets" or
	// "Totals" row.
	ErrMissingSection = errors.New("report section not found")
	// ErrNoGets is returned when the "Gets" row reports zero operations,
	// which would make hit and miss ratios undefined.
	ErrNoGets = errors.New("report has zero get operations")
)

// Columns holds the report column headers matching the Stats layout.
var Columns = [NumFields]string{
	"Ops/s", "Hits", "Misses", "Avg. Latency",
	"p50 Latency", "p99 Latency", "p99.9 Latency", "KB/s",
}

// Stats is the aggregate result of one trial. Hits and misses are
// fractions of all get operations rather than per-second rates.
type Stats [NumFields]float64

// Parse extracts the "Gets" and "Totals" rows from a memtier_benchmark
// report and normalizes the hit and miss columns by the total number of
// get operations.
//
// The hit and miss rates are divided by the first "Gets" field, on the
// assumption that the Totals hits/misses are counted over gets only.
func Parse(report string) (Stats, error) {
	var stats Stats

	gets, err := section(report, "Gets")
	if err != nil {
		return stats, err
	}

	totals, err := section(report, "Totals")
	if err != nil {
		return stats, err
	}

	if len(gets) == 0 {
		return stats, fmt.Errorf("gets row: %w", ErrNoGets)
	}

	if len(totals) < NumFields {
		return stats, fmt.Errorf(
			"totals row has %d fields, want %d", len(totals), NumFields,
		)
	}

	if gets[0] == 0 {
		return stats, ErrNoGets
	}

	copy(stats[:], totals[:NumFields])
	stats[HitRatio] /= gets[0]
	stats[MissRatio] /= gets[0]

	return stats, nil
}

func section(report, label string) ([]float64, error) {
	row, ok := cutBetween(report, "\n"+label, "\n")
	if !ok {
		return nil, fmt.Errorf("%s: %w", label, ErrMissingSection)
	}

	fields := strings.Fields(row)
	values := make([]float64, 0, len(fields))

	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: parse %q: %w", label, f, err)
		}

		values = append(values, v)
	}

	return values, nil
}

func cutBetween(s, before, after string) (string, bool) {
	_, rest, ok := strings.Cut(s, before)
	if !ok {
		return "", false
	}

	row, _, ok := strings.Cut(rest, after)
	if !ok {
		return "", false
	}

	return row, true
}

// PercentChange returns the relative change from base to value in percent.
func PercentChange(base, value float64) float64 {
	return (value - base) / base * 100
}
