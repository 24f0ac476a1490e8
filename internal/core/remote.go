package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"soil-backend/internal/core/soil"

	"github.com/go-resty/resty/v2"
)

// RemoteClassifier posts the raw image to a model server that answers with
// {"predictions":[{"label":"..","confidence":..}]} ranked by confidence.
type RemoteClassifier struct {
	client *resty.Client
	url    string
}

type remotePrediction struct {
	Predictions []Category `json:"predictions"`
	Error       string     `json:"error,omitempty"`
}

func NewRemoteClassifier(url string, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteClassifier{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

func (c *RemoteClassifier) Classify(ctx context.Context, image []byte) ([]Category, error) {
	var result remotePrediction

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", http.DetectContentType(image)).
		SetHeader("Accept", "application/json").
		SetBody(image).
		SetResult(&result).
		SetError(&result).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}

	if !res.IsSuccess() {
		slog.Error("classifier server returned error", "status_code", res.StatusCode(), "body", res.String())
		if result.Error != "" {
			return nil, fmt.Errorf("%s", result.Error)
		}
		return nil, fmt.Errorf("classifier server returned status %d", res.StatusCode())
	}

	return result.Predictions, nil
}

func (c *RemoteClassifier) Labels() []string {
	return soil.Labels()
}

func (c *RemoteClassifier) Release() {
	c.client.GetClient().CloseIdleConnections()
}
