// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/agri_node/internal/clock"
)

const (
	// pollStep is how often a smart delay looks for new bytes.
	pollStep = 5 * time.Millisecond
	// ReadWindow is the smart delay taken before and after sampling a fix.
	ReadWindow = 100 * time.Millisecond
)

// OpenSerial opens the GPS UART in 8N1 with blocking single byte reads.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gps serial open %s: %w", port, err)
	}
	return p, nil
}

// Pump copies r into a channel from a background goroutine until r fails.
// The channel is closed when the pump stops.
func Pump(r io.Reader, logger *log.Logger) <-chan []byte {
	ch := make(chan []byte, 64)
	go func() {
		defer close(ch)
		buf := make([]byte, 256)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				ch <- chunk
			}
			if err != nil {
				if err != io.EOF && logger != nil {
					logger.Error("gps read error", "err", err)
				}
				return
			}
		}
	}()
	return ch
}

// Receiver owns the tracker and consumes the pumped bytes, but only while a
// smart delay is running.
type Receiver struct {
	tracker *Tracker
	in      <-chan []byte
	clk     clock.Clock
	started time.Time
	logger  *log.Logger
}

// NewReceiver builds a receiver over a byte channel, normally from Pump.
func NewReceiver(in <-chan []byte, clk clock.Clock, logger *log.Logger) *Receiver {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Receiver{
		tracker: NewTracker(),
		in:      in,
		clk:     clk,
		started: clk.Now(),
		logger:  logger,
	}
}

// Tracker exposes the underlying tracker.
func (r *Receiver) Tracker() *Tracker { return r.tracker }

// SmartDelay waits d while feeding every received byte to the tracker so
// nothing is lost during idle time.
func (r *Receiver) SmartDelay(ctx context.Context, d time.Duration) error {
	start := r.clk.Now()
	for {
		r.drain()
		if r.clk.Now().Sub(start) >= d {
			return nil
		}
		if err := r.clk.Sleep(ctx, pollStep); err != nil {
			return err
		}
	}
}

func (r *Receiver) drain() {
	for {
		select {
		case chunk, ok := <-r.in:
			if !ok {
				r.in = nil
				return
			}
			r.tracker.Feed(chunk)
		default:
			return
		}
	}
}

// Read takes a fix between two smart delays and logs it. A module that has
// produced almost no bytes after the grace period is reported but the
// (possibly zero) fix is still returned.
func (r *Receiver) Read(ctx context.Context) (Fix, error) {
	if err := r.SmartDelay(ctx, ReadWindow); err != nil {
		return Fix{}, err
	}
	fix := r.tracker.Fix()
	r.logger.Info("gps fix",
		"lat", fix.Latitude,
		"lon", fix.Longitude,
		"alt", fix.Altitude,
		"sats", fix.Satellites,
		"time", fix.Time,
	)
	if NotDetected(r.clk.Now().Sub(r.started), fix.CharsProcessed) {
		r.logger.Warn("GPS not detected, check the module wiring", "chars", fix.CharsProcessed)
	}
	if err := r.SmartDelay(ctx, ReadWindow); err != nil {
		return fix, err
	}
	return fix, nil
}
