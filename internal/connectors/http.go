// Package connectors holds the third-party source clients the VITAL product
// line extracts from: HubSpot (CRM), QuickBooks (accounting), Zoom
// (communications), and BigQuery (mobile app analytics).
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// newHTTPClient builds the shared retrying HTTP client all REST connectors
// use. Third-party APIs flake; a couple of retries with backoff is cheaper
// than failing a whole tenant pass.
func newHTTPClient(logger zerolog.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = newRetryLogger(logger)
	return client
}

// getJSON performs an authorized GET and decodes the JSON body into out.
func getJSON(ctx context.Context, client *retryablehttp.Client, url, bearerToken string, out interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode response from %s", url)
	}
	return nil
}

// retryLogger routes retryablehttp's leveled logger onto zerolog.
type retryLogger struct {
	logger zerolog.Logger
}

func newRetryLogger(logger zerolog.Logger) retryablehttp.LeveledLogger {
	return &retryLogger{logger: logger.With().Str("component", "http").Logger()}
}

func (l *retryLogger) withKeyvals(event *zerolog.Event, keysAndValues ...interface{}) *zerolog.Event {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = append(keysAndValues, "MISSING_VALUE")
	}
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = "INVALID_KEY"
		}
		event = event.Interface(key, keysAndValues[i+1])
	}
	return event
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.withKeyvals(l.logger.Error(), keysAndValues...).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.withKeyvals(l.logger.Info(), keysAndValues...).Msg(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.withKeyvals(l.logger.Debug(), keysAndValues...).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.withKeyvals(l.logger.Warn(), keysAndValues...).Msg(msg)
}
