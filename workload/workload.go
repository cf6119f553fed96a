// Package workload generates the sweep plan: the cross-product of server
// thread counts and payload sizes, visited in a seeded random order so that
// an interrupted sweep leaves results scattered across the whole matrix.
package workload

import (
	"fmt"
	mrand "math/rand"
)

// Point is one (thread count, payload size) configuration.
type Point struct {
	Threads int `json:"threads"`
	Size    int `json:"size"`
}

func (p Point) String() string {
	return fmt.Sprintf("t=%d/d=%d", p.Threads, p.Size)
}

// Config controls the sweep ranges. MaxThreads is inclusive; SizeLimit
// is exclusive.
type Config struct {
	MinThreads int
	MaxThreads int
	MinSize    int
	SizeLimit  int
	SizeStep   int
	Seed       int64
}

// DefaultConfig returns the full sweep: 1..31 threads and payloads from
// 4096 up to (excluding) 20 pages, in page steps.
func DefaultConfig() Config {
	return Config{
		MinThreads: 1,
		MaxThreads: 31,
		MinSize:    4096,
		SizeLimit:  4096 * 20,
		SizeStep:   4096,
	}
}

// Validate reports ranges that would produce an empty or endless plan.
func (c Config) Validate() error {
	if c.MinThreads < 1 || c.MaxThreads < c.MinThreads {
		return fmt.Errorf("invalid thread range [%d, %d]", c.MinThreads, c.MaxThreads)
	}

	if c.SizeStep <= 0 {
		return fmt.Errorf("size step must be positive, got %d", c.SizeStep)
	}

	if c.MinSize < 1 || c.SizeLimit <= c.MinSize {
		return fmt.Errorf("invalid size range [%d, %d)", c.MinSize, c.SizeLimit)
	}

	return nil
}

// Generator produces sweep plans from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}
}

// Threads returns the thread counts in ascending order.
func (g *Generator) Threads() []int {
	threads := make([]int, 0, g.cfg.MaxThreads-g.cfg.MinThreads+1)
	for t := g.cfg.MinThreads; t <= g.cfg.MaxThreads; t++ {
		threads = append(threads, t)
	}

	return threads
}

// Sizes returns the payload sizes in ascending order.
func (g *Generator) Sizes() []int {
	var sizes []int
	for s := g.cfg.MinSize; s < g.cfg.SizeLimit; s += g.cfg.SizeStep {
		sizes = append(sizes, s)
	}

	return sizes
}

// Generate returns every point of the cross-product exactly once, shuffled.
func (g *Generator) Generate() []Point {
	threads := g.Threads()
	sizes := g.Sizes()

	points := make([]Point, 0, len(threads)*len(sizes))
	for _, t := range threads {
		for _, s := range sizes {
			points = append(points, Point{Threads: t, Size: s})
		}
	}

	g.rng.Shuffle(len(points), func(i, j int) {
		points[i], points[j] = points[j], points[i]
	})

	return points
}
