// Package report formats benchmark results into comparison tables.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/weiihann/cachebench/memtier"
	"github.com/weiihann/cachebench/scenario"
)

// ErrUnknownBaseline is returned when the delta baseline label is not
// among the rows.
var ErrUnknownBaseline = errors.New("unknown baseline")

// ErrZeroBaseline is returned when a baseline field is zero, so no
// percentage change can be computed against it.
var ErrZeroBaseline = errors.New("zero baseline field")

const (
	labelFmt = "%-14s"
	cellFmt  = "%15s"
	// percentFields are rendered as percentages in the absolute table.
	percentFields = 3
)

// higherIsBetter marks the columns where a positive delta is an
// improvement.
var higherIsBetter = [memtier.NumFields]bool{
	memtier.OpsPerSec: true,
	memtier.HitRatio:  true,
	memtier.KBPerSec:  true,
}

// Table writes absolute stats, one row per trial.
func Table(w io.Writer, rows []scenario.Row) {
	header(w, " ")

	for _, r := range rows {
		fmt.Fprintf(w, labelFmt, r.Label)

		for i, v := range r.Stats {
			cell := formatRaw(v)
			if i < percentFields {
				cell = fmt.Sprintf("%.1f%%", v*100)
			}

			fmt.Fprintf(w, cellFmt, cell)
		}

		fmt.Fprintln(w)
	}
}

// DeltaTable writes every field of the selected rows as a signed percentage
// change against the first row labelled baseline. A nil includeOnly selects
// every row except the baseline itself.
func DeltaTable(w io.Writer, rows []scenario.Row, baseline string, includeOnly []string) error {
	base, ok := findRow(rows, baseline)
	if !ok {
		return fmt.Errorf("%q: %w", baseline, ErrUnknownBaseline)
	}

	for i, v := range base {
		if v == 0 {
			return fmt.Errorf("%q %s: %w", baseline, memtier.Columns[i], ErrZeroBaseline)
		}
	}

	include := make(map[string]bool)
	if includeOnly == nil {
		for _, r := range rows {
			if r.Label != baseline {
				include[r.Label] = true
			}
		}
	} else {
		for _, label := range includeOnly {
			include[label] = true
		}
	}

	header(w, "⊥"+baseline)

	for _, r := range rows {
		if !include[r.Label] {
			continue
		}

		fmt.Fprintf(w, labelFmt, "Δ"+r.Label)

		for i, v := range r.Stats {
			pct := memtier.PercentChange(base[i], v)
			cell := fmt.Sprintf(cellFmt, fmt.Sprintf("%+.1f%%", pct))

			fmt.Fprint(w, colorDelta(cell, pct, higherIsBetter[i]))
		}

		fmt.Fprintln(w)
	}

	return nil
}

// Matrix writes a grid of sweep results with thread counts as columns and
// payload sizes as rows. Points without a measurement are shown as "...".
func Matrix(w io.Writer, threads, sizes []int, cells scenario.Matrix) {
	fmt.Fprintf(w, "%8s ", "")

	for _, t := range threads {
		fmt.Fprintf(w, "%8d ", t)
	}

	fmt.Fprintln(w)

	for _, s := range sizes {
		fmt.Fprintf(w, "%8d ", s)

		for _, t := range threads {
			v, ok := cells[pointOf(t, s)]
			if !ok {
				fmt.Fprintf(w, "%8s ", "...")
				continue
			}

			fmt.Fprintf(w, "%7.1f%% ", v)
		}

		fmt.Fprintln(w)
	}
}

// GenerateJSON writes rows as JSON to w.
func GenerateJSON(w io.Writer, rows []scenario.Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(rows)
}

func header(w io.Writer, corner string) {
	fmt.Fprintf(w, labelFmt, corner)

	for _, c := range memtier.Columns {
		fmt.Fprintf(w, cellFmt, c)
	}

	fmt.Fprintln(w)
}

func findRow(rows []scenario.Row, label string) (memtier.Stats, bool) {
	for _, r := range rows {
		if r.Label == label {
			return r.Stats, true
		}
	}

	return memtier.Stats{}, false
}

func formatRaw(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) || strings.Contains(s, ".") {
		return s
	}

	return s + ".0"
}
