package gps

import (
	"fmt"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
)

const maxSentence = 128

// Tracker assembles NMEA sentences from a raw byte stream and keeps the
// latest fix from GGA and RMC sentences.
type Tracker struct {
	mu      sync.Mutex
	line    []byte
	chars   uint64
	parsed  uint64
	failed  uint64
	current Fix
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{line: make([]byte, 0, maxSentence)}
}

// Feed consumes raw bytes from the receiver.
func (t *Tracker) Feed(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range p {
		t.chars++
		switch b {
		case '\n':
			t.handleLine(string(t.line))
			t.line = t.line[:0]
		case '\r':
		default:
			if len(t.line) >= maxSentence {
				// runaway garbage, resync on the next '$'
				t.line = t.line[:0]
				t.failed++
			}
			t.line = append(t.line, b)
		}
	}
}

func (t *Tracker) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	// sentences may be preceded by noise from a partial read
	i := strings.IndexByte(line, '$')
	if i < 0 {
		t.failed++
		return
	}
	s, err := nmea.Parse(line[i:])
	if err != nil {
		t.failed++
		return
	}
	t.parsed++

	switch s.DataType() {
	case nmea.TypeGGA:
		m := s.(nmea.GGA)
		t.current.Latitude = m.Latitude
		t.current.Longitude = m.Longitude
		t.current.Altitude = m.Altitude
		t.current.Satellites = m.NumSatellites
		t.current.Valid = m.FixQuality != nmea.Invalid && m.FixQuality != ""
		if m.Time.Valid {
			t.current.Time = formatTime(m.Time)
		}
	case nmea.TypeRMC:
		m := s.(nmea.RMC)
		t.current.Latitude = m.Latitude
		t.current.Longitude = m.Longitude
		t.current.Valid = m.Validity == nmea.ValidRMC
		if m.Time.Valid {
			t.current.Time = formatTime(m.Time)
		}
		if m.Date.Valid {
			t.current.Date = fmt.Sprintf("20%02d-%02d-%02d", m.Date.YY, m.Date.MM, m.Date.DD)
		}
	default:
		// GSA, GSV, VTG etc. carry nothing we report
	}
}

// Fix returns a snapshot of the latest fix.
func (t *Tracker) Fix() Fix {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.current
	f.CharsProcessed = t.chars
	return f
}

// CharsProcessed is the number of raw bytes fed so far.
func (t *Tracker) CharsProcessed() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chars
}

// Stats returns the number of decoded and rejected sentences.
func (t *Tracker) Stats() (parsed, failed uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.parsed, t.failed
}

func formatTime(tm nmea.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d", tm.Hour, tm.Minute, tm.Second)
}
