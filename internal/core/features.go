package core

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"soil-backend/internal/core/soil"
)

// DefaultReading replaces any missing or unparsable reading. Defaulting instead
// of failing keeps the user able to proceed with partial input.
const DefaultReading float32 = 0.0

// RawReadings are the readings as the user typed them. A missing field is "".
type RawReadings struct {
	Temperature string
	Humidity    string
	Rainfall    string
	Sunlight    string
}

type Readings struct {
	Temperature float32
	Humidity    float32
	Rainfall    float32
	Sunlight    float32
}

// decimalReading is plain decimal notation with an optional exponent. Go
// literal forms such as "1_000" and "0x1p3" are not readings.
var decimalReading = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func parseReading(text string) (float32, bool) {
	text = strings.TrimSpace(text)
	if !decimalReading.MatchString(text) {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return float32(v), true
}

func ParseOrDefault(text string, def float32) float32 {
	if v, ok := parseReading(text); ok {
		return v
	}
	return def
}

func ParseReadings(raw RawReadings) Readings {
	return Readings{
		Temperature: ParseOrDefault(raw.Temperature, DefaultReading),
		Humidity:    ParseOrDefault(raw.Humidity, DefaultReading),
		Rainfall:    ParseOrDefault(raw.Rainfall, DefaultReading),
		Sunlight:    ParseOrDefault(raw.Sunlight, DefaultReading),
	}
}

// ParseReadingsStrict rejects text that is present but not a number. Empty
// fields still take DefaultReading.
func ParseReadingsStrict(raw RawReadings) (Readings, error) {
	var r Readings
	fields := []struct {
		name string
		text string
		dst  *float32
	}{
		{"temperature", raw.Temperature, &r.Temperature},
		{"humidity", raw.Humidity, &r.Humidity},
		{"rainfall", raw.Rainfall, &r.Rainfall},
		{"sunlight", raw.Sunlight, &r.Sunlight},
	}

	var errs []error
	for _, f := range fields {
		if strings.TrimSpace(f.text) == "" {
			*f.dst = DefaultReading
			continue
		}
		v, ok := parseReading(f.text)
		if !ok {
			errs = append(errs, &invalidReadingError{field: f.name, text: f.text})
			continue
		}
		*f.dst = v
	}

	if len(errs) > 0 {
		return Readings{}, errors.Join(errs...)
	}
	return r, nil
}

func Assemble(readings Readings, soilLabel string) FeatureVector {
	return FeatureVector{
		readings.Temperature,
		readings.Humidity,
		readings.Rainfall,
		readings.Sunlight,
		soil.Encode(soilLabel).Code(),
	}
}

type Assembler struct {
	Strict bool
}

func (a Assembler) AssembleRaw(raw RawReadings, soilLabel string) (FeatureVector, error) {
	if !a.Strict {
		return Assemble(ParseReadings(raw), soilLabel), nil
	}

	readings, err := ParseReadingsStrict(raw)
	if err != nil {
		return FeatureVector{}, err
	}
	return Assemble(readings, soilLabel), nil
}

func (a Assembler) Readings(raw RawReadings) (Readings, error) {
	if !a.Strict {
		return ParseReadings(raw), nil
	}
	return ParseReadingsStrict(raw)
}
