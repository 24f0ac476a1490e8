package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrDefault(t *testing.T) {
	cases := []struct {
		text     string
		expected float32
	}{
		{"25.5", 25.5},
		{"80", 80},
		{"-3.25", -3.25},
		{" 12 ", 12},
		{"1e2", 100},
		{"", 0},
		{"abc", 0},
		{"bad", 0},
		{"12,5", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"-Infinity", 0},
		{"1_000", 0},
		{"0x1p3", 0},
		{"0x10", 0},
		{"+4.", 4},
		{".5", 0.5},
		{"1e400", 0},
	}

	for _, c := range cases {
		assert.Equal(t, c.expected, ParseOrDefault(c.text, DefaultReading), "text %q", c.text)
	}

	assert.Equal(t, float32(-1), ParseOrDefault("oops", -1))
}

func TestAssembleScenario(t *testing.T) {
	raw := RawReadings{Temperature: "25.5", Humidity: "", Rainfall: "80", Sunlight: "bad"}

	vector := Assemble(ParseReadings(raw), "02-Andosol")

	assert.Equal(t, FeatureVector{25.5, 0.0, 80.0, 0.0, 2.0}, vector)
	assert.Equal(t, float32(25.5), vector.Temperature())
	assert.Equal(t, float32(0), vector.Humidity())
	assert.Equal(t, float32(80), vector.Rainfall())
	assert.Equal(t, float32(0), vector.Sunlight())
	assert.Equal(t, float32(2), vector.SoilCode())
}

func TestAssembleIsDeterministic(t *testing.T) {
	raw := RawReadings{Temperature: "31", Humidity: "77.7", Rainfall: "abc", Sunlight: "6"}

	first := Assemble(ParseReadings(raw), "07-Kapur")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Assemble(ParseReadings(raw), "07-Kapur"))
	}
	assert.Equal(t, FeatureVector{31, 77.7, 0, 6, 7}, first)
}

func TestAssembleUnknownLabel(t *testing.T) {
	vector := Assemble(Readings{Temperature: 1, Humidity: 2, Rainfall: 3, Sunlight: 4}, "mystery")
	assert.Equal(t, FeatureVector{1, 2, 3, 4, 0}, vector)
}

func TestLenientModeNeverFails(t *testing.T) {
	// Malformed readings are defaulted on purpose so the user can always proceed.
	a := Assembler{}
	vector, err := a.AssembleRaw(RawReadings{Temperature: "abc", Humidity: "", Rainfall: "??", Sunlight: "1..2"}, "04-Humus")
	require.NoError(t, err)
	assert.Equal(t, FeatureVector{0, 0, 0, 0, 4}, vector)
}

func TestStrictModeRejectsMalformed(t *testing.T) {
	a := Assembler{Strict: true}

	_, err := a.AssembleRaw(RawReadings{Temperature: "abc", Humidity: "50", Rainfall: "x"}, "04-Humus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidReading))
	assert.Contains(t, err.Error(), "temperature")
	assert.Contains(t, err.Error(), "rainfall")
	assert.NotContains(t, err.Error(), "humidity")

	vector, err := a.AssembleRaw(RawReadings{Temperature: "20", Humidity: "", Rainfall: "100", Sunlight: " "}, "08-Pasir")
	require.NoError(t, err)
	assert.Equal(t, FeatureVector{20, 0, 100, 0, 8}, vector)
}
