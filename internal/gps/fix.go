package gps

import "time"

// Fix is the latest decoded GPS state, suitable for JSON.
type Fix struct {
	Latitude       float64 `json:"lat"`        // decimal degrees
	Longitude      float64 `json:"lon"`        // decimal degrees
	Altitude       float64 `json:"alt_m"`      // metres above MSL
	Satellites     int64   `json:"satellites"` // satellites in use
	Time           string  `json:"time"`       // e.g. "12:34:56" UTC
	Date           string  `json:"date"`       // e.g. "2024-05-01"
	Valid          bool    `json:"valid"`      // RMC "A" or GGA quality > 0
	CharsProcessed uint64  `json:"chars_processed"`
}

const (
	// DetectionGrace is how long after startup the receiver is given to
	// produce any bytes at all.
	DetectionGrace = 5 * time.Second
	// MinChars is the byte count below which the module is considered
	// disconnected once the grace period is over.
	MinChars = 10
)

// NotDetected reports a GPS module that has produced almost nothing after
// the startup grace period, which usually means a wiring fault.
func NotDetected(uptime time.Duration, chars uint64) bool {
	return uptime > DetectionGrace && chars < MinChars
}
