package gql

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	libpack_logger "github.com/lukaszraczylo/go-tagged-graphql/logging"
	"github.com/valyala/fasthttp"
)

// FastHTTPTransport sends requests with valyala/fasthttp. It does not retry.
type FastHTTPTransport struct {
	Client  *fasthttp.Client
	Logger  *libpack_logger.Logger
	Timeout time.Duration
}

func NewFastHTTPTransport(logger *libpack_logger.Logger) *FastHTTPTransport {
	return &FastHTTPTransport{
		Client: &fasthttp.Client{
			MaxConnsPerHost:     50,
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        10 * time.Second,
		},
		Logger:  logger,
		Timeout: 30 * time.Second,
	}
}

func (t *FastHTTPTransport) Do(ctx context.Context, request *TransportRequest) (any, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	req.SetRequestURI(request.URL)
	req.Header.SetMethod(request.Method)
	for header, value := range request.Headers {
		req.Header.Set(header, value)
	}
	if request.Body != nil {
		req.SetBody(request.Body)
	}

	timeout := t.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := t.Client
	if client == nil {
		client = &fasthttp.Client{}
	}

	var err error
	if timeout > 0 {
		err = client.DoTimeout(req, res, timeout)
	} else {
		err = client.Do(req, res)
	}
	if err != nil {
		if t.Logger != nil {
			t.Logger.Debug(&libpack_logger.LogMessage{
				Message: "Error while executing fasthttp request",
				Pairs:   map[string]interface{}{"error": err.Error()},
			})
		}
		return nil, err
	}

	if status := res.StatusCode(); status < 200 || status >= 300 {
		return nil, fmt.Errorf("HTTP error - unacceptable status code: %d for %q", status, sanitizeForLogging(request.URL))
	}

	body, err := res.BodyUncompressed()
	if err != nil {
		return nil, fmt.Errorf("error while reading http response: %w", err)
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error while unmarshalling http response: %w", err)
	}
	return result, nil
}
