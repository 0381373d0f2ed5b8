package ghostrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Response bodies of failed posts are kept up to this size for the error.
const maxErrorBodySize = 4096

// HTTPCallback posts {"Payload": Payload} to URI. An empty URI disables it.
type HTTPCallback struct {
	URI     string `mapstructure:"uri"`
	Payload string `mapstructure:"payload"`
}

func (h HTTPCallback) Post(client *http.Client) error {
	if h.URI == "" {
		return nil
	}

	return PostJSON(client, h.URI, map[string]string{"Payload": h.Payload})
}

// HTTPStatusError is returned for any response outside 2xx.
type HTTPStatusError struct {
	URI        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("POST %s: status %d: %s", e.URI, e.StatusCode, e.Body)
}

func PostJSON(client *http.Client, uri string, body interface{}) error {
	return PostJSONContext(context.Background(), client, uri, body)
}

// PostJSONContext posts body as JSON. Posts are timed as HTTP.Post, tagged
// with the response status.
func PostJSONContext(ctx context.Context, client *http.Client, uri string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ghostrouter/"+VersionString)

	logger := logrus.WithFields(logrus.Fields{
		"tag": "http_post",
		"uri": uri,
	})

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		metrics.Timer("HTTP.Post", time.Since(start), []MetricTag{{"status", "error"}}, 1.0)
		return err
	}
	defer res.Body.Close()
	metrics.Timer("HTTP.Post", time.Since(start), []MetricTag{{"status", fmt.Sprint(res.StatusCode)}}, 1.0)

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		io.Copy(io.Discard, res.Body)
		logger.WithField("status", res.StatusCode).Debug("posted")
		return nil
	}

	resBody, readErr := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
	if readErr != nil {
		logger.WithError(readErr).Warn("failed to read response body")
	}

	statusErr := &HTTPStatusError{URI: uri, StatusCode: res.StatusCode, Body: string(resBody)}
	logger.WithError(statusErr).Error("post rejected")
	return statusErr
}
