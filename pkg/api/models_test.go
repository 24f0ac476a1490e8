package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingAcceptsStringsNumbersAndNull(t *testing.T) {
	var req AnalyzeRequest
	body := `{"Temperature":"25.5","Humidity":60,"Rainfall":null,"Sunlight":{"lux":3},"Save":true}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, Reading("25.5"), req.Temperature)
	assert.Equal(t, Reading("60"), req.Humidity)
	assert.Equal(t, Reading(""), req.Rainfall)
	assert.Equal(t, Reading(`{"lux":3}`), req.Sunlight)
	assert.True(t, req.Save)

	var missing AnalyzeRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &missing))
	assert.Equal(t, Reading(""), missing.Temperature)
}
