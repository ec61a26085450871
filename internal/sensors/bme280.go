package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// BME280 wraps the periph bmxx80 driver as an alternative
// temperature/humidity sensor.
type BME280 struct {
	dev *bmxx80.Dev
}

// NewBME280 opens a BME280 on the I2C bus (0x76 or 0x77).
func NewBME280(bus i2c.Bus, addr uint16) (*BME280, error) {
	if addr == 0 {
		addr = 0x76
	}
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("bme280 init: %w", err)
	}
	return &BME280{dev: dev}, nil
}

func (b *BME280) sense() (physic.Env, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return e, fmt.Errorf("bme280 sense: %w", err)
	}
	return e, nil
}

// Temperature returns degrees Celsius.
func (b *BME280) Temperature() (float64, error) {
	e, err := b.sense()
	if err != nil {
		return 0, err
	}
	return e.Temperature.Celsius(), nil
}

// Humidity returns relative humidity in percent.
func (b *BME280) Humidity() (float64, error) {
	e, err := b.sense()
	if err != nil {
		return 0, err
	}
	return float64(e.Humidity) / float64(physic.PercentRH), nil
}

// Halt stops the sensor.
func (b *BME280) Halt() error { return b.dev.Halt() }
