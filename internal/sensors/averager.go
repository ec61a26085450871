// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/relabs-tech/agri_node/internal/clock"
)

// Source produces one raw sample from a physical sensor.
type Source interface {
	Sample() (float64, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func() (float64, error)

func (f SourceFunc) Sample() (float64, error) { return f() }

// Averager takes Samples readings from Source, Delay apart, and returns
// their arithmetic mean. Settle is waited after the last sample so the bus
// is quiet before the next sensor is polled.
type Averager struct {
	Name    string
	Unit    string
	Source  Source
	Samples int
	Delay   time.Duration
	Settle  time.Duration
	Clock   clock.Clock
	Logger  *log.Logger
}

// Read returns the mean of the successful samples. Failed samples are
// logged and skipped; an error is returned only if every sample failed or
// ctx was cancelled. Values are not range checked.
func (a *Averager) Read(ctx context.Context) (float64, error) {
	n := a.Samples
	if n < 1 {
		n = 1
	}
	clk := a.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var (
		sum     float64
		ok      int
		lastErr error
	)
	for i := 0; i < n; i++ {
		v, err := a.Source.Sample()
		if err != nil {
			lastErr = err
			a.logger().Warn("sample failed", "sensor", a.Name, "index", i, "err", err)
		} else {
			sum += v
			ok++
		}
		if err := clk.Sleep(ctx, a.Delay); err != nil {
			return 0, err
		}
	}
	if ok == 0 {
		return 0, fmt.Errorf("%s: all %d samples failed: %w", a.Name, n, lastErr)
	}

	mean := sum / float64(ok)
	a.logger().Infof("%s average: %.2f %s", a.Name, mean, a.Unit)

	if err := clk.Sleep(ctx, a.Settle); err != nil {
		return mean, err
	}
	return mean, nil
}

func (a *Averager) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.Default()
}
