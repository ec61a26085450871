// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// AP3216 register map.
const (
	AP3216Addr = 0x1E

	apRegSystemConfig = 0x00
	apRegALSLow       = 0x0C
	apRegALSHigh      = 0x0D
	apRegPSLow        = 0x0E
	apRegPSHigh       = 0x0F

	apModeALSAndPS = 0x03

	// lux per count at the default 20661 lux range
	apLuxPerCount = 0.36
)

// AP3216 is an ambient light and proximity sensor on I2C.
type AP3216 struct {
	dev i2c.Dev
}

// NewAP3216 enables both the ALS and PS engines.
func NewAP3216(bus i2c.Bus, addr uint16) (*AP3216, error) {
	if addr == 0 {
		addr = AP3216Addr
	}
	a := &AP3216{dev: i2c.Dev{Bus: bus, Addr: addr}}
	if err := a.dev.Tx([]byte{apRegSystemConfig, apModeALSAndPS}, nil); err != nil {
		return nil, fmt.Errorf("ap3216: enable als+ps: %w", err)
	}
	return a, nil
}

// AmbientLight returns the ambient light level in lux.
func (a *AP3216) AmbientLight() (float64, error) {
	lo, err := a.readReg(apRegALSLow)
	if err != nil {
		return 0, fmt.Errorf("ap3216 als: %w", err)
	}
	hi, err := a.readReg(apRegALSHigh)
	if err != nil {
		return 0, fmt.Errorf("ap3216 als: %w", err)
	}
	raw := uint16(hi)<<8 | uint16(lo)
	return float64(raw) * apLuxPerCount, nil
}

// Proximity returns the raw 10 bit proximity count.
func (a *AP3216) Proximity() (float64, error) {
	lo, err := a.readReg(apRegPSLow)
	if err != nil {
		return 0, fmt.Errorf("ap3216 ps: %w", err)
	}
	hi, err := a.readReg(apRegPSHigh)
	if err != nil {
		return 0, fmt.Errorf("ap3216 ps: %w", err)
	}
	raw := uint16(hi&0x3F)<<4 | uint16(lo&0x0F)
	return float64(raw), nil
}

func (a *AP3216) readReg(reg byte) (byte, error) {
	buf := make([]byte, 1)
	if err := a.dev.Tx([]byte{reg}, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}
