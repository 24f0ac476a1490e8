package core

import (
	"encoding/json"
	"fmt"
)

// ResultPayload is the immutable result handed to the presentation layer or
// the history writer.
type ResultPayload struct {
	image  ImageReference
	label  string
	vector FeatureVector
}

type payloadWire struct {
	ImageUri           string        `json:"imageUri"`
	SoilClassification string        `json:"soilClassification"`
	InputArray         FeatureVector `json:"inputArray"`
}

// Package requires an image. Callers are expected to have checked the selection
// before classifying, so a missing image here is a contract violation.
func Package(image ImageReference, label string, vector FeatureVector) (ResultPayload, error) {
	if image.IsZero() {
		return ResultPayload{}, ErrMissingImage
	}
	return ResultPayload{image: image, label: label, vector: vector}, nil
}

func Unpackage(p ResultPayload) (ImageReference, string, FeatureVector) {
	return p.image, p.label, p.vector
}

func (p ResultPayload) Image() ImageReference { return p.image }
func (p ResultPayload) Label() string         { return p.label }
func (p ResultPayload) Vector() FeatureVector { return p.vector }

func (p ResultPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(payloadWire{
		ImageUri:           string(p.image),
		SoilClassification: p.label,
		InputArray:         p.vector,
	})
}

func (p *ResultPayload) UnmarshalJSON(data []byte) error {
	var wire struct {
		ImageUri           string         `json:"imageUri"`
		SoilClassification string         `json:"soilClassification"`
		InputArray         *FeatureVector `json:"inputArray"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.InputArray == nil {
		return fmt.Errorf("%w: inputArray missing", ErrInvalidVector)
	}

	decoded, err := Package(ImageReference(wire.ImageUri), wire.SoilClassification, *wire.InputArray)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

func EncodePayload(p ResultPayload) ([]byte, error) {
	if p.image.IsZero() {
		return nil, ErrMissingImage
	}
	return json.Marshal(p)
}

func DecodePayload(data []byte) (ResultPayload, error) {
	var p ResultPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ResultPayload{}, fmt.Errorf("decode result payload: %w", err)
	}
	return p, nil
}
