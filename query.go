package gql

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/lukaszraczylo/go-tagged-graphql/compiler"
	libpack_logger "github.com/lukaszraczylo/go-tagged-graphql/logging"
)

// buildRequest picks the wire encoding. POST carries a JSON payload when the
// caller supplied a body, for mutations, and when the GET URL would reach
// the configured length limit; everything else is a GET.
func (b *BaseClient) buildRequest(op *compiler.Operation, opts *Options) (*TransportRequest, error) {
	request := &TransportRequest{
		URL:     b.endpoint,
		Method:  http.MethodPost,
		Headers: make(map[string]string, len(opts.Headers)+1),
	}

	switch {
	case opts.Body != nil:
		request.Body = opts.Body

	default:
		queryString, err := op.QueryString()
		if err != nil {
			return nil, err
		}
		getURL, err := appendQuery(b.endpoint, queryString)
		if err != nil {
			return nil, err
		}

		if op.Type != compiler.KindMutation && len(getURL) < b.max_get_length {
			request.Method = http.MethodGet
			request.URL = getURL
			break
		}

		body, err := json.Marshal(op.Payload())
		if err != nil {
			return nil, err
		}
		request.Body = body
		request.Headers["Content-Type"] = "application/json"
	}

	for key, value := range opts.Headers {
		request.Headers[key] = value
	}
	if opts.Method != "" {
		request.Method = opts.Method
	}

	b.Logger.Debug(&libpack_logger.LogMessage{
		Message: "Prepared transport request",
		Pairs: map[string]interface{}{
			"method":    request.Method,
			"operation": op.Name,
			"type":      string(op.Type),
			"url_bytes": len(request.URL),
		},
	})
	return request, nil
}
