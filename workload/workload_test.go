package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRanges(t *testing.T) {
	gen := NewGenerator(DefaultConfig())

	threads := gen.Threads()
	require.Len(t, threads, 31)
	assert.Equal(t, 1, threads[0])
	assert.Equal(t, 31, threads[len(threads)-1])

	sizes := gen.Sizes()
	require.Len(t, sizes, 19)
	assert.Equal(t, 4096, sizes[0])
	assert.Equal(t, 4096*19, sizes[len(sizes)-1])
}

func TestGenerateCoversCrossProduct(t *testing.T) {
	cfg := Config{
		MinThreads: 1,
		MaxThreads: 2,
		MinSize:    4096,
		SizeLimit:  4096 * 3,
		SizeStep:   4096,
		Seed:       7,
	}

	points := NewGenerator(cfg).Generate()

	assert.ElementsMatch(t, []Point{
		{1, 4096}, {1, 8192}, {2, 4096}, {2, 8192},
	}, points)
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42

	first := NewGenerator(cfg).Generate()
	second := NewGenerator(cfg).Generate()
	assert.Equal(t, first, second)

	cfg.Seed = 43
	other := NewGenerator(cfg).Generate()
	assert.NotEqual(t, first, other)
	assert.ElementsMatch(t, first, other)
}

func TestGenerateUnique(t *testing.T) {
	points := NewGenerator(DefaultConfig()).Generate()

	seen := make(map[Point]bool, len(points))
	for _, p := range points {
		assert.False(t, seen[p], "duplicate point %v", p)
		seen[p] = true
	}
	assert.Len(t, seen, 31*19)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero threads", func(c *Config) { c.MinThreads = 0 }, true},
		{"inverted threads", func(c *Config) { c.MaxThreads = 0 }, true},
		{"zero step", func(c *Config) { c.SizeStep = 0 }, true},
		{"empty sizes", func(c *Config) { c.SizeLimit = c.MinSize }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
