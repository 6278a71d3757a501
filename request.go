package gql

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
	libpack_logger "github.com/lukaszraczylo/go-tagged-graphql/logging"
)

// HTTPTransport is the default Transport. Retrying is its own business:
// the dispatcher calls it once per request.
type HTTPTransport struct {
	Client   *http.Client
	Logger   *libpack_logger.Logger
	Attempts int
	Delay    time.Duration
}

var discardLogger = libpack_logger.New().SetOutput(io.Discard)

func (t *HTTPTransport) logger() *libpack_logger.Logger {
	if t.Logger == nil {
		return discardLogger
	}
	return t.Logger
}

func (t *HTTPTransport) Do(ctx context.Context, request *TransportRequest) (any, error) {
	if t.Client == nil {
		return nil, fmt.Errorf("HTTP transport has no client configured")
	}

	attempts := t.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var result any
	err := retry.Do(
		func() error {
			var body io.Reader
			if request.Body != nil {
				body = bytes.NewReader(request.Body)
			}
			httpRequest, err := http.NewRequestWithContext(ctx, request.Method, request.URL, body)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("can't create HTTP request: %w", err))
			}
			for key, value := range request.Headers {
				httpRequest.Header.Set(key, value)
			}

			httpResponse, err := t.Client.Do(httpRequest)
			if err != nil {
				t.logger().Debug(&libpack_logger.LogMessage{
					Message: "Error while executing http request",
					Pairs:   map[string]interface{}{"error": err.Error()},
				})
				return err
			}
			defer func() {
				_, _ = io.Copy(io.Discard, httpResponse.Body)
				httpResponse.Body.Close()
			}()

			if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
				return fmt.Errorf("HTTP error - unacceptable status code: %q for %q", httpResponse.Status, sanitizeForLogging(request.URL))
			}

			reader := io.Reader(httpResponse.Body)
			if httpResponse.Header.Get("Content-Encoding") == "gzip" {
				gz, err := gzip.NewReader(httpResponse.Body)
				if err != nil {
					return fmt.Errorf("error while creating gzip reader: %w", err)
				}
				defer gz.Close()
				reader = gz
			}

			payload, err := io.ReadAll(reader)
			if err != nil {
				return fmt.Errorf("error while reading http response: %w", err)
			}

			t.logGraphQLErrors(payload)

			if err := json.Unmarshal(payload, &result); err != nil {
				return retry.Unrecoverable(fmt.Errorf("error while unmarshalling http response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			t.logger().Warning(&libpack_logger.LogMessage{
				Message: "Retrying query",
				Pairs:   map[string]interface{}{"error": err.Error(), "attempt": int(n)},
			})
		}),
		retry.Attempts(uint(attempts)),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(t.Delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// logGraphQLErrors reports the "errors" array of a response. The response
// itself is still delivered: GraphQL errors are data, not transport failures.
func (t *HTTPTransport) logGraphQLErrors(payload []byte) {
	_, _ = jsonparser.ArrayEach(payload, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		message, _ := jsonparser.GetString(value, "message")
		t.logger().Warning(&libpack_logger.LogMessage{
			Message: "GraphQL error in response",
			Pairs:   map[string]interface{}{"error": message},
		})
	}, "errors")
}
