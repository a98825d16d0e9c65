package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aircraftState struct {
	ICAO     string  `msgpack:"icao"`
	Callsign string  `msgpack:"callsign"`
	Lat      float64 `msgpack:"lat"`
	Lon      float64 `msgpack:"lon"`
	Altitude int     `msgpack:"altitude"`
}

func TestMsgpackSerializerRoundTrip(t *testing.T) {
	s := NewMsgpackSerializer()

	in := aircraftState{ICAO: "4CA87C", Callsign: "RYR81LM", Lat: 52.3, Lon: 4.76, Altitude: 37000}
	data, err := s.Encode(in)
	require.NoError(t, err)

	var out aircraftState
	require.NoError(t, s.Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestMsgpackSerializerCollections(t *testing.T) {
	s := NewMsgpackSerializer()

	states := []aircraftState{
		{ICAO: "4CA87C", Lat: 52.3, Lon: 4.76},
		{ICAO: "A1B2C3", Lat: 40.6, Lon: -73.8},
	}
	data, err := s.Encode(states)
	require.NoError(t, err)
	var gotStates []aircraftState
	require.NoError(t, s.Decode(data, &gotStates))
	assert.Equal(t, states, gotStates)

	counts := map[string]int{"departures": 12, "arrivals": 9}
	data, err = s.Encode(counts)
	require.NoError(t, err)
	var gotCounts map[string]int
	require.NoError(t, s.Decode(data, &gotCounts))
	assert.Equal(t, counts, gotCounts)
}

func TestMsgpackSerializerUnsupportedValue(t *testing.T) {
	s := NewMsgpackSerializer()
	_, err := s.Encode(make(chan int))
	assert.Error(t, err)
}

func TestGzipSerializerRoundTrip(t *testing.T) {
	s := NewGzipSerializer(nil)

	in := aircraftState{ICAO: "4CA87C", Callsign: "RYR81LM", Lat: 52.3, Lon: 4.76, Altitude: 37000}
	data, err := s.Encode(in)
	require.NoError(t, err)

	var out aircraftState
	require.NoError(t, s.Decode(data, &out))
	assert.Equal(t, in, out)
}

func TestGzipSerializerCompressesLargePayloads(t *testing.T) {
	plain := NewMsgpackSerializer()
	zipped := NewGzipSerializer(nil)

	// A wide tile of repetitive positions compresses well.
	states := make([]aircraftState, 500)
	for i := range states {
		states[i] = aircraftState{ICAO: "4CA87C", Callsign: "RYR81LM", Lat: 52.3, Lon: 4.76, Altitude: 37000}
	}
	raw, err := plain.Encode(states)
	require.NoError(t, err)
	compressed, err := zipped.Encode(states)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(raw))
}

func TestGzipSerializerRejectsCorruptData(t *testing.T) {
	s := NewGzipSerializer(nil)
	var out any
	assert.Error(t, s.Decode([]byte("not gzip"), &out))
}
