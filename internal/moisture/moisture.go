// Package moisture converts raw soil-moisture counts into a percentage and
// decides the state of the irrigation indicator.
package moisture

// Level is the logic level written to the actuator pin.
// The actuator is active low.
type Level int

const (
	Low  Level = iota // active
	High              // inactive
)

func (l Level) String() string {
	if l == Low {
		return "LOW"
	}
	return "HIGH"
}

// Active reports whether the actuator is energised at this level.
func (l Level) Active() bool { return l == Low }

// RawToPercent maps raw linearly from [inLow, inHigh] onto [0, 100] and
// clamps the result. inLow is the dry reading and inHigh the wet one; the
// range may be descending (870 dry, 800 wet on the reference probe).
func RawToPercent(raw, inLow, inHigh float64) float64 {
	if inHigh == inLow {
		return 0
	}
	p := (raw - inLow) * 100 / (inHigh - inLow)
	return clamp(p, 0, 100)
}

// RawToPercentFullScale converts a reading where full scale means dry:
// 100 - raw/fullScale*100, clamped to [0, 100].
func RawToPercentFullScale(raw, fullScale float64) float64 {
	if fullScale <= 0 {
		return 0
	}
	return clamp(100-(raw/fullScale)*100, 0, 100)
}

// Decide returns Low (active) when percent is in [0,50) or (70,100] and
// High otherwise. The (50,70] band is inactive.
func Decide(percent float64) Level {
	if (percent >= 0 && percent < 50) || (percent > 70 && percent <= 100) {
		return Low
	}
	return High
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
