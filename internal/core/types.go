package core

import (
	"encoding/json"
	"fmt"
)

// ImageReference locates a finalized (post-crop) image. The empty reference
// means no image is selected.
type ImageReference string

func (r ImageReference) IsZero() bool {
	return r == ""
}

func (r ImageReference) String() string {
	return string(r)
}

type Category struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

const FeatureVectorLen = 5

// FeatureVector is [temperature, humidity, rainfall, sunlight, soilCode]. The
// order is the contract with the downstream recommender.
type FeatureVector [FeatureVectorLen]float32

func (v FeatureVector) Temperature() float32 { return v[0] }
func (v FeatureVector) Humidity() float32    { return v[1] }
func (v FeatureVector) Rainfall() float32    { return v[2] }
func (v FeatureVector) Sunlight() float32    { return v[3] }
func (v FeatureVector) SoilCode() float32    { return v[4] }

func (v FeatureVector) Slice() []float32 {
	out := make([]float32, FeatureVectorLen)
	copy(out, v[:])
	return out
}

func (v *FeatureVector) UnmarshalJSON(data []byte) error {
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVector, err)
	}
	if len(values) != FeatureVectorLen {
		return fmt.Errorf("%w: expected %d values, got %d", ErrInvalidVector, FeatureVectorLen, len(values))
	}
	copy(v[:], values)
	return nil
}
