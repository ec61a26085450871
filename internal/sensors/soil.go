package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

var adsChannels = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// SoilProbe reads a capacitive soil-moisture probe through one channel of
// an ADS1115. Sample returns the voltage as 12-bit counts of a 3.3 V
// reference; calibration happens in the moisture package.
type SoilProbe struct {
	pin analog.PinADC
}

// NewSoilProbe opens channel (0-3) of the ADS1115 at addr.
func NewSoilProbe(bus i2c.Bus, addr uint16, channel int) (*SoilProbe, error) {
	if channel < 0 || channel >= len(adsChannels) {
		return nil, fmt.Errorf("soil probe: channel %d out of range 0-3", channel)
	}
	opts := ads1x15.DefaultOpts
	if addr != 0 {
		opts.I2cAddress = addr
	}
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("soil probe: ads1115 init: %w", err)
	}
	pin, err := adc.PinForChannel(adsChannels[channel], 4096*physic.MilliVolt, 128*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		return nil, fmt.Errorf("soil probe: channel %d: %w", channel, err)
	}
	return &SoilProbe{pin: pin}, nil
}

// Sample returns one raw conversion.
func (s *SoilProbe) Sample() (float64, error) {
	r, err := s.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("soil probe read: %w", err)
	}
	return boardCounts(r.V), nil
}

// The moisture calibration was taken on a 12-bit ADC with a 3.3 V
// reference, so samples are reported on that scale.
const (
	boardFullScale = 4095
	boardReference = 3300 * physic.MilliVolt
)

func boardCounts(v physic.ElectricPotential) float64 {
	return float64(v) / float64(boardReference) * boardFullScale
}

// Halt releases the ADC channel.
func (s *SoilProbe) Halt() error { return s.pin.Halt() }
