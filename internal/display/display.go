// Package display renders the latest cycle on a 128x64 SSD1306 OLED.
package display

import (
	"fmt"
	"image"

	"github.com/charmbracelet/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/agri_node/internal/node"
)

const (
	width  = 128
	height = 64
)

// Panel is the drawing surface. *ssd1306.Dev satisfies it.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Open initialises an SSD1306 on bus.
func Open(bus i2c.Bus) (*ssd1306.Dev, error) {
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	return dev, nil
}

// Display draws node status on a panel.
type Display struct {
	panel  Panel
	nodeID string
	logger *log.Logger
}

func New(panel Panel, nodeID string, logger *log.Logger) *Display {
	return &Display{panel: panel, nodeID: nodeID, logger: logger}
}

// Splash shows the node id while the first cycle runs.
func (d *Display) Splash() error {
	return d.show(Lines("Agri node", d.nodeID, "Reading sensors"))
}

// Observer redraws the panel when a cycle reaches Idle and shows a short
// status line while a delivery is in progress.
func (d *Display) Observer() node.Observer {
	return node.ObserverFunc(func(s node.State, c node.Cycle) {
		var err error
		switch s {
		case node.Deliver:
			err = d.show(Lines(fmt.Sprintf("Cycle %d", c.Number), "Sending..."))
		case node.Idle:
			err = d.show(Frame(c))
		}
		if err != nil {
			d.logger.Warn("display update failed", "err", err)
		}
	})
}

func (d *Display) show(img *image1bit.VerticalLSB) error {
	return d.panel.Draw(d.panel.Bounds(), img, image.Point{})
}

// Frame renders a finished cycle.
func Frame(c node.Cycle) *image1bit.VerticalLSB {
	led := "off"
	if c.ActuatorOn {
		led = "ON"
	}
	return Lines(
		fmt.Sprintf("T%5.1fC H%5.1f%%", c.Temperature, c.Humidity),
		fmt.Sprintf("Soil %3.0f%% LED %s", c.SoilMoisture, led),
		coord(c.Fix.Latitude, "N", "S")+" "+coord(c.Fix.Longitude, "E", "W"),
		fmt.Sprintf("#%d sent %d/%d", c.Number, c.Delivery.Delivered, c.Delivery.Requests),
	)
}

// Lines renders up to four text rows in the 7x13 font.
func Lines(rows ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, width, height))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, row := range rows {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(row)
	}
	return img
}

func coord(v float64, pos, neg string) string {
	dir := pos
	if v < 0 {
		dir = neg
		v = -v
	}
	return fmt.Sprintf("%.3f%s", v, dir)
}
