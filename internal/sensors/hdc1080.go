// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// HDC1080 register map.
const (
	HDC1080Addr = 0x40

	hdcRegTemperature = 0x00
	hdcRegHumidity    = 0x01
	hdcRegConfig      = 0x02
	hdcRegManufID     = 0xFE

	hdcManufTI = 0x5449

	// 14 bit conversion needs ~6.5ms; the datasheet margin is generous.
	hdcConversionTime = 15 * time.Millisecond
)

// HDC1080 is a TI temperature/humidity sensor on I2C.
type HDC1080 struct {
	dev  i2c.Dev
	wait func(time.Duration)
}

// NewHDC1080 checks the manufacturer ID and configures 14 bit
// independent temperature/humidity conversions.
func NewHDC1080(bus i2c.Bus, addr uint16) (*HDC1080, error) {
	if addr == 0 {
		addr = HDC1080Addr
	}
	h := &HDC1080{dev: i2c.Dev{Bus: bus, Addr: addr}, wait: time.Sleep}

	id := make([]byte, 2)
	if err := h.dev.Tx([]byte{hdcRegManufID}, id); err != nil {
		return nil, fmt.Errorf("hdc1080: read manufacturer id: %w", err)
	}
	if got := binary.BigEndian.Uint16(id); got != hdcManufTI {
		return nil, fmt.Errorf("hdc1080: unexpected manufacturer id 0x%04X", got)
	}
	if err := h.dev.Tx([]byte{hdcRegConfig, 0x00, 0x00}, nil); err != nil {
		return nil, fmt.Errorf("hdc1080: write config: %w", err)
	}
	return h, nil
}

// Temperature returns degrees Celsius.
func (h *HDC1080) Temperature() (float64, error) {
	raw, err := h.measure(hdcRegTemperature)
	if err != nil {
		return 0, fmt.Errorf("hdc1080 temperature: %w", err)
	}
	return float64(raw)/65536*165 - 40, nil
}

// Humidity returns relative humidity in percent.
func (h *HDC1080) Humidity() (float64, error) {
	raw, err := h.measure(hdcRegHumidity)
	if err != nil {
		return 0, fmt.Errorf("hdc1080 humidity: %w", err)
	}
	return float64(raw) / 65536 * 100, nil
}

func (h *HDC1080) measure(reg byte) (uint16, error) {
	if err := h.dev.Tx([]byte{reg}, nil); err != nil {
		return 0, err
	}
	h.wait(hdcConversionTime)
	buf := make([]byte, 2)
	if err := h.dev.Tx(nil, buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}
