package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/agri_node/internal/gps"
	"github.com/relabs-tech/agri_node/internal/mirror"
	"github.com/relabs-tech/agri_node/internal/node"
)

func TestFormatCycle(t *testing.T) {
	payload, err := json.Marshal(mirror.Message{Node: "point06", Cycle: node.Cycle{
		Number: 7, Temperature: 21.5, Humidity: 60, Light: 1100, Proximity: 12,
		SoilMoisture: 42, ActuatorOn: true,
		Fix:      gps.Fix{Latitude: 6.2, Longitude: -75.5},
		Delivery: node.Report{Requests: 6, Attempts: 7, Delivered: 6},
	}})
	require.NoError(t, err)

	line, err := FormatCycle(payload)
	require.NoError(t, err)
	assert.Equal(t, "[point06 #7] T=21.50C H=60.00% L= 1100.0lux P=  12 soil= 42.0% led=ON gps=6.20000,-75.50000 sent=6/6 attempts=7", line)
}

func TestFormatCycleBadPayload(t *testing.T) {
	_, err := FormatCycle([]byte("{"))
	require.Error(t, err)
}
