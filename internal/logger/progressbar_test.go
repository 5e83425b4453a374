package logger

import (
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestProgressBarRender(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		current  int
		width    int
		expected string
	}{
		{"empty", 10, 0, 10, "[          ] 0/10 (0%)"},
		{"half", 10, 5, 10, "[=====     ] 5/10 (50%)"},
		{"full", 4, 4, 10, "[==========] 4/4 (100%)"},
		{"over", 4, 6, 10, "[==========] 6/4 (100%)"},
		{"zero total", 0, 0, 10, "[          ] 0/0 (0%)"},
		{"narrow", 3, 1, 3, "[   ] 1/3 (33%)"},
		{"default width", 2, 1, 0, "[=====     ] 1/2 (50%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewProgressBar(tt.total, tt.width, false)
			pb.Update(tt.current)
			assert.Equal(t, tt.expected, pb.Render())
		})
	}
}

func TestProgressBarPrefix(t *testing.T) {
	pb := NewProgressBar(2, 4, false)
	pb.SetPrefix("entries ")
	pb.Increment()
	assert.Equal(t, "entries [==  ] 1/2 (50%)", pb.Render())
	assert.Equal(t, 1, pb.Current())
	assert.Equal(t, 2, pb.Total())
	assert.Equal(t, 50, pb.Percentage())
}

func TestProgressBarColors(t *testing.T) {
	saved := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = saved }()

	pb := NewProgressBar(2, 4, true)
	pb.Update(1)
	assert.Contains(t, pb.Render(), "\x1b[36m")

	pb.Update(2)
	assert.Contains(t, pb.Render(), "\x1b[32m")

	plain := NewProgressBar(2, 4, false)
	assert.NotContains(t, plain.Render(), "\x1b[")
}

func TestProgressBarConcurrency(t *testing.T) {
	pb := NewProgressBar(100, 10, false)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pb.Increment()
			_ = pb.Render()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, pb.Current())
}
