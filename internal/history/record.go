package history

import (
	"time"

	"soil-backend/internal/core"

	"github.com/google/uuid"
)

// DateLayout is how a record's creation time is shown, e.g. "05 Mar 2024, 14:07".
const DateLayout = "02 Jan 2006, 15:04"

// Record is a saved classification. It is never modified after creation.
type Record struct {
	ID       uuid.UUID `json:"id"`
	ImageUri string    `json:"imageUri"`
	Result   string    `json:"result"`
	Date     string    `json:"date"`

	// Inputs is the feature vector sent with the result, when known. It is not
	// part of the record's displayed content.
	Inputs []float32 `json:"inputArray,omitempty"`
}

func NewRecord(image core.ImageReference, result string, now time.Time) Record {
	return Record{
		ID:       uuid.New(),
		ImageUri: image.String(),
		Result:   result,
		Date:     now.Format(DateLayout),
	}
}

// RecordFromPayload builds the record kept for a saved result.
func RecordFromPayload(payload core.ResultPayload, now time.Time) Record {
	record := NewRecord(payload.Image(), payload.Label(), now)
	record.Inputs = payload.Vector().Slice()
	return record
}

func sameContent(a, b Record) bool {
	return a.ImageUri == b.ImageUri && a.Result == b.Result && a.Date == b.Date
}
