package status

import "github.com/relabs-tech/agri_node/internal/node"

// Colours reported by the alarm endpoint.
const (
	Green = "green"
	Red   = "red"
)

// Band is an inclusive acceptable range for one variable.
type Band struct {
	Name  string
	Min   float64
	Max   float64
	value func(node.Cycle) float64
}

// DefaultBands are the dashboard limits for temperature, humidity and light.
func DefaultBands() []Band {
	return []Band{
		{Name: "temperature", Min: 16, Max: 24, value: func(c node.Cycle) float64 { return c.Temperature }},
		{Name: "humidity", Min: 50, Max: 76, value: func(c node.Cycle) float64 { return c.Humidity }},
		{Name: "light", Min: 1000, Max: 1200, value: func(c node.Cycle) float64 { return c.Light }},
	}
}

// Alarm is the evaluation of one band over the recent cycles.
type Alarm struct {
	Name       string  `json:"name"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Color      string  `json:"color"`
	OutOfRange int     `json:"out_of_range"`
	Samples    int     `json:"samples"`
}

// Evaluate marks a band red when any cycle has a value outside it.
func Evaluate(bands []Band, cycles []node.Cycle) []Alarm {
	out := make([]Alarm, 0, len(bands))
	for _, b := range bands {
		a := Alarm{Name: b.Name, Min: b.Min, Max: b.Max, Color: Green, Samples: len(cycles)}
		for _, c := range cycles {
			v := b.value(c)
			if v > b.Max || v < b.Min {
				a.OutOfRange++
			}
		}
		if a.OutOfRange > 0 {
			a.Color = Red
		}
		out = append(out, a)
	}
	return out
}
