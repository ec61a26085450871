package moisture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawToPercent(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"dry end", 870, 0},
		{"wet end", 800, 100},
		{"midpoint", 835, 50},
		{"drier than dry clamps", 950, 0},
		{"wetter than wet clamps", 700, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RawToPercent(tt.raw, 870, 800), 1e-9)
		})
	}
}

func TestRawToPercentAscendingRange(t *testing.T) {
	assert.InDelta(t, 25.0, RawToPercent(1250, 1000, 2000), 1e-9)
}

func TestRawToPercentDegenerateRange(t *testing.T) {
	assert.Equal(t, 0.0, RawToPercent(10, 5, 5))
}

func TestRawToPercentFullScale(t *testing.T) {
	assert.InDelta(t, 100.0, RawToPercentFullScale(0, 4095), 1e-9)
	assert.InDelta(t, 0.0, RawToPercentFullScale(4095, 4095), 1e-9)
	assert.InDelta(t, 50.0, RawToPercentFullScale(2047.5, 4095), 1e-9)
	assert.Equal(t, 0.0, RawToPercentFullScale(100, 0))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		percent float64
		want    Level
	}{
		{0, Low},
		{49, Low},
		{49.99, Low},
		{50, High},
		{60, High},
		{70, High},
		{70.01, Low},
		{71, Low},
		{100, Low},
		{-1, High},
		{101, High},
	}
	for _, tt := range tests {
		require.Equalf(t, tt.want, Decide(tt.percent), "percent=%v", tt.percent)
	}
}

func TestLevel(t *testing.T) {
	assert.True(t, Low.Active())
	assert.False(t, High.Active())
	assert.Equal(t, "LOW", Low.String())
	assert.Equal(t, "HIGH", High.String())
}
