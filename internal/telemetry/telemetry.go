// Package telemetry builds the JSON documents sent to the remote endpoint.
package telemetry

import (
	"bytes"
	"encoding/json"
)

// KindNumeric is the only attribute type the node emits.
const KindNumeric = "numeric"

// Reading is one named measurement of a cycle.
type Reading struct {
	Name  string  `json:"name"`
	Kind  string  `json:"type"`
	Value float64 `json:"value"`
}

// Numeric is a shorthand for a numeric reading.
func Numeric(name string, v float64) Reading {
	return Reading{Name: name, Kind: KindNumeric, Value: v}
}

// FlatReport is the single document posted by the simple variant.
// Field order is the wire order.
type FlatReport struct {
	ID          string  `json:"id"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Temperatura float64 `json:"temperatura"`
	Humedad     float64 `json:"humedad"`
}

// EncodeFlat serialises r as {"id","lat","lon","temperatura","humedad"}.
func EncodeFlat(r FlatReport) ([]byte, error) {
	return json.Marshal(r)
}

type attrValue struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// EncodeAttributes serialises readings as an NGSI attribute map,
// {"<name>":{"type":"numeric","value":v},...}, keeping the input order.
func EncodeAttributes(readings []Reading) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range readings {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(r.Name)
		if err != nil {
			return nil, err
		}
		kind := r.Kind
		if kind == "" {
			kind = KindNumeric
		}
		val, err := json.Marshal(attrValue{Type: kind, Value: r.Value})
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EntityUpdate is one PATCH of an entity's attributes.
type EntityUpdate struct {
	EntityID   string
	Attributes []Reading
}

// Encode serialises the update's attribute map.
func (u EntityUpdate) Encode() ([]byte, error) {
	return EncodeAttributes(u.Attributes)
}

// Snapshot is the set of values a cycle hands to the encoder.
type Snapshot struct {
	NodeID       string
	Temperature  float64
	Humidity     float64
	Light        float64
	Proximity    float64
	SoilMoisture float64
	Latitude     float64
	Longitude    float64
}

// Flat builds the simple variant document.
func Flat(s Snapshot) FlatReport {
	return FlatReport{
		ID:          s.NodeID,
		Lat:         s.Latitude,
		Lon:         s.Longitude,
		Temperatura: s.Temperature,
		Humedad:     s.Humidity,
	}
}

// Updates returns the per-entity updates of the NGSI variant in send order.
func Updates(s Snapshot) []EntityUpdate {
	return []EntityUpdate{
		{EntityID: "sensorTemperatura", Attributes: []Reading{Numeric("temperatura", s.Temperature)}},
		{EntityID: "sensorHumedad", Attributes: []Reading{Numeric("humedad", s.Humidity)}},
		{EntityID: "sensorLuz", Attributes: []Reading{Numeric("luz", s.Light)}},
		{EntityID: "sensorProximidad", Attributes: []Reading{Numeric("proximidad", s.Proximity)}},
		{EntityID: "sensorHumedadPlanta", Attributes: []Reading{Numeric("humedad", s.SoilMoisture)}},
		{EntityID: "sensorGPS", Attributes: []Reading{
			Numeric("latitud", s.Latitude),
			Numeric("longitud", s.Longitude),
		}},
	}
}
