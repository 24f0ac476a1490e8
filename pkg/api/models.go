package api

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

type UploadImageResponse struct {
	ImageUri string
}

type CreateSessionResponse struct {
	SessionId uuid.UUID
}

type SelectImageRequest struct {
	ImageUri string
}

type Session struct {
	SessionId uuid.UUID
	ImageUri  string
}

// Reading is a reading as the user typed it. It decodes from a JSON string,
// number or null; any other JSON value keeps its raw text, which the parser
// then treats as unparsable.
type Reading string

func (r *Reading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Reading(s)
	default:
		*r = Reading(data)
	}
	return nil
}

// AnalyzeRequest carries the readings as the user typed them. Missing or
// unparsable values become 0 unless the server runs in strict mode.
type AnalyzeRequest struct {
	Temperature Reading
	Humidity    Reading
	Rainfall    Reading
	Sunlight    Reading

	Save bool
}

// ResultPayload is the result handed to the recommender. InputArray is
// [temperature, humidity, rainfall, sunlight, soilCode].
type ResultPayload struct {
	ImageUri           string    `json:"imageUri"`
	SoilClassification string    `json:"soilClassification"`
	InputArray         []float32 `json:"inputArray"`
}

type AnalyzeResponse struct {
	Result   ResultPayload
	SoilCode int
	SoilName string
	Saved    bool
}

type SaveResultResponse struct {
	Queued bool
}

type HistoryRecord struct {
	Id       uuid.UUID
	ImageUri string
	Result   string
	Date     string

	InputArray []float32 `json:"InputArray,omitempty"`
}

type ListHistoryParams struct {
	Limit int `schema:"limit"`
}

type HistoryDiffRequest struct {
	Records []HistoryRecord
}

type HistoryDiffResponse struct {
	Mode      string
	Inserted  []int
	Removed   []int
	Changed   []int
	Positions []int
	Records   []HistoryRecord
}

type SoilClass struct {
	Code  int
	Name  string
	Label string
}
