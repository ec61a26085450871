// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"math/rand"
	"time"

	"github.com/relabs-tech/agri_node/internal/clock"
)

// Wave is a mock source that drifts smoothly around Base with the given
// Amplitude and Period, plus uniform Noise. It stands in for real hardware
// when the node runs in simulation.
type Wave struct {
	Base      float64
	Amplitude float64
	Period    time.Duration
	Noise     float64

	clk   clock.Clock
	start time.Time
	rnd   *rand.Rand
}

// NewWave returns a Wave anchored at the clock's current time.
func NewWave(clk clock.Clock, base, amplitude float64, period time.Duration, noise float64, seed int64) *Wave {
	return &Wave{
		Base:      base,
		Amplitude: amplitude,
		Period:    period,
		Noise:     noise,
		clk:       clk,
		start:     clk.Now(),
		rnd:       rand.New(rand.NewSource(seed)),
	}
}

func (w *Wave) Sample() (float64, error) {
	v := w.Base
	if w.Period > 0 {
		phase := w.clk.Now().Sub(w.start).Seconds() / w.Period.Seconds()
		v += w.Amplitude * math.Sin(2*math.Pi*phase)
	}
	if w.Noise > 0 {
		v += (w.rnd.Float64()*2 - 1) * w.Noise
	}
	return v, nil
}

// SimulatedField returns sources for temperature, humidity, light,
// proximity and raw soil readings that stay close to the field's typical
// ranges.
func SimulatedField(clk clock.Clock) (temp, hum, light, prox, soil Source) {
	day := 24 * time.Hour
	return NewWave(clk, 20, 4, day, 0.2, 1),
		NewWave(clk, 63, 12, day, 1, 2),
		NewWave(clk, 1100, 150, day, 10, 3),
		NewWave(clk, 20, 0, 0, 5, 4),
		NewWave(clk, 835, 40, 6*time.Hour, 2, 5)
}
