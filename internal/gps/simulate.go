package gps

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/agri_node/internal/clock"
)

// Sentence wraps an NMEA body with the leading '$', checksum and CRLF.
func Sentence(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, cs)
}

// Position is a fixed point used by the simulated receiver.
type Position struct {
	Latitude   float64
	Longitude  float64
	Altitude   float64
	Satellites int
}

// Sentences renders a GGA and an RMC sentence for p at t.
func Sentences(p Position, t time.Time) string {
	t = t.UTC()
	hms := t.Format("150405")
	lat, ns := nmeaCoord(p.Latitude, 2, "N", "S")
	lon, ew := nmeaCoord(p.Longitude, 3, "E", "W")

	gga := fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,%02d,0.9,%.1f,M,0.0,M,,", hms, lat, ns, lon, ew, p.Satellites, p.Altitude)
	rmc := fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,000.0,000.0,%s,,", hms, lat, ns, lon, ew, t.Format("020106"))
	return Sentence(gga) + Sentence(rmc)
}

func nmeaCoord(v float64, degDigits int, pos, neg string) (string, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	mins := (v - deg) * 60
	return fmt.Sprintf("%0*d%07.4f", degDigits, int(deg), mins), hemi
}

// Simulate emits sentences for p once per interval until ctx is done, in
// the same chunked form Pump produces from a serial port.
func Simulate(ctx context.Context, p Position, interval time.Duration, clk clock.Clock) <-chan []byte {
	out := make(chan []byte, 4)
	go func() {
		defer close(out)
		for {
			select {
			case out <- []byte(Sentences(p, clk.Now())):
			case <-ctx.Done():
				return
			}
			if err := clk.Sleep(ctx, interval); err != nil {
				return
			}
		}
	}()
	return out
}
