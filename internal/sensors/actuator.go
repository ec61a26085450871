package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/relabs-tech/agri_node/internal/moisture"
)

// GPIOActuator drives an active-low LED or relay on a GPIO pin.
type GPIOActuator struct {
	pin gpio.PinOut
}

// NewGPIOActuator looks the pin up by name (e.g. "GPIO25") and drives it
// low, matching the power-on state of the original board.
func NewGPIOActuator(name string) (*GPIOActuator, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("actuator pin %q not found", name)
	}
	a := &GPIOActuator{pin: p}
	if err := a.Set(moisture.Low); err != nil {
		return nil, err
	}
	return a, nil
}

// NewGPIOActuatorPin wraps an already resolved pin.
func NewGPIOActuatorPin(p gpio.PinOut) *GPIOActuator {
	return &GPIOActuator{pin: p}
}

func (a *GPIOActuator) Set(level moisture.Level) error {
	l := gpio.High
	if level == moisture.Low {
		l = gpio.Low
	}
	if err := a.pin.Out(l); err != nil {
		return fmt.Errorf("actuator %s: %w", a.pin, err)
	}
	return nil
}
