package report

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"

	"github.com/weiihann/cachebench/harness"
	"github.com/weiihann/cachebench/memtier"
	"github.com/weiihann/cachebench/scenario"
	"github.com/weiihann/cachebench/workload"
)

type sweepCell struct {
	Mode    harness.Mode `json:"mode"`
	Threads int          `json:"threads"`
	Size    int          `json:"size"`
	Delta   float64      `json:"ops_delta_pct"`
}

type sweepReport struct {
	Native memtier.Stats `json:"native"`
	Done   int           `json:"done"`
	Total  int           `json:"total"`
	Cells  []sweepCell   `json:"cells"`
}

// SweepJSON writes the measured sweep cells as JSON to w, ordered by mode,
// thread count and payload size.
func SweepJSON(w io.Writer, res *scenario.SweepResult) error {
	out := sweepReport{
		Native: res.Native,
		Done:   res.Done,
		Total:  res.Total,
		Cells:  []sweepCell{},
	}

	for mode, m := range res.Modes {
		for p, v := range m {
			out.Cells = append(out.Cells, sweepCell{
				Mode:    mode,
				Threads: p.Threads,
				Size:    p.Size,
				Delta:   v,
			})
		}
	}

	slices.SortFunc(out.Cells, func(a, b sweepCell) int {
		return cmp.Or(
			cmp.Compare(a.Mode, b.Mode),
			cmp.Compare(a.Threads, b.Threads),
			cmp.Compare(a.Size, b.Size),
		)
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func pointOf(threads, size int) workload.Point {
	return workload.Point{Threads: threads, Size: size}
}
