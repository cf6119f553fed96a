package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	separator    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	better = color.New(color.FgGreen).SprintFunc()
	worse  = color.New(color.FgRed).SprintFunc()
)

// Heading renders a section title.
func Heading(title string) string {
	return headingStyle.Render(title)
}

// Separator renders a horizontal rule of the given width.
func Separator(width int) string {
	return separator.Render(strings.Repeat("-", width))
}

func colorDelta(cell string, pct float64, higherBetter bool) string {
	if pct == 0 || math.IsNaN(pct) {
		return cell
	}

	if (pct > 0) == higherBetter {
		return better(cell)
	}

	return worse(cell)
}

// Progress reports sweep progress with a bar and an estimate of the time
// remaining.
type Progress struct {
	w     io.Writer
	bar   progress.Model
	start time.Time
	now   func() time.Time
}

// NewProgress returns a Progress writing to w. The clock starts now.
func NewProgress(w io.Writer) *Progress {
	return &Progress{
		w: w,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		start: time.Now(),
		now:   time.Now,
	}
}

// Update writes one progress line for done out of total points.
func (p *Progress) Update(done, total int) {
	frac := 0.0
	if total > 0 {
		frac = float64(done) / float64(total)
	}

	elapsed := p.now().Sub(p.start)

	var eta time.Duration
	if done > 0 {
		eta = time.Duration(float64(elapsed) / float64(done) * float64(total-done))
	}

	fmt.Fprintf(p.w, "%s %3.0f%% %d/%d [%s<%s]\n",
		p.bar.ViewAs(frac),
		frac*100,
		done, total,
		elapsed.Round(time.Second),
		eta.Round(time.Second),
	)
}
