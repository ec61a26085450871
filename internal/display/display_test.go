package display

import (
	"image"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/agri_node/internal/gps"
	"github.com/relabs-tech/agri_node/internal/node"
)

type fakePanel struct {
	frames []image.Image
}

func (p *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, width, height) }

func (p *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	p.frames = append(p.frames, src)
	return nil
}

func lit(img *image1bit.VerticalLSB) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestLinesBlankAndText(t *testing.T) {
	assert.Zero(t, lit(Lines()))
	assert.Positive(t, lit(Lines("Agri node")))
}

func TestFrameRendersText(t *testing.T) {
	c := node.Cycle{Number: 3, Temperature: 22.5, Humidity: 61, SoilMoisture: 40, ActuatorOn: true, Fix: gps.Fix{Latitude: 6.2, Longitude: -75.5}}
	img := Frame(c)
	assert.Equal(t, image.Rect(0, 0, width, height), img.Bounds())
	assert.Positive(t, lit(img))
}

func TestObserverDrawsOnDeliverAndIdle(t *testing.T) {
	p := &fakePanel{}
	d := New(p, "point06", log.New(io.Discard))
	require.NoError(t, d.Splash())

	obs := d.Observer()
	for _, s := range []node.State{node.ReadSensors, node.ReadGPS, node.Deliver, node.Idle} {
		obs.Transition(s, node.Cycle{Number: 1})
	}
	assert.Len(t, p.frames, 3)
}

func TestCoord(t *testing.T) {
	assert.Equal(t, "6.200N", coord(6.2, "N", "S"))
	assert.Equal(t, "75.500W", coord(-75.5, "E", "W"))
}
