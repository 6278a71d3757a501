package gql

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/goutil/envutil"
	libpack_logger "github.com/lukaszraczylo/go-tagged-graphql/logging"
	"golang.org/x/net/http2"
)

func (b *BaseClient) createHttpClient() (*http.Client, error) {
	checkRedirect := func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse // Don't follow redirects automatically
	}

	switch {
	case strings.HasPrefix(b.endpoint, "http://"):
		b.Logger.Debug(&libpack_logger.LogMessage{
			Message: "Using HTTP/1.1 transport over http",
		})
		return &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxConnsPerHost:       50,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       30 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				DisableCompression:    true, // gzip is decoded by the transport itself
				WriteBufferSize:       4096,
				ReadBufferSize:        4096,
			},
			CheckRedirect: checkRedirect,
		}, nil

	case strings.HasPrefix(b.endpoint, "https://"):
		b.Logger.Debug(&libpack_logger.LogMessage{
			Message: "Using HTTP/2 over TLS (https)",
		})
		return &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http2.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: envutil.GetBool("GRAPHQL_INSECURE_SKIP_VERIFY", false),
				},
				ReadIdleTimeout:    30 * time.Second,
				PingTimeout:        10 * time.Second,
				WriteByteTimeout:   10 * time.Second,
				DisableCompression: true,
			},
			CheckRedirect: checkRedirect,
		}, nil
	}

	return nil, fmt.Errorf("invalid endpoint %q - must start with http:// or https://", sanitizeForLogging(b.endpoint))
}
