package gql

import (
	"context"
	"net/http"
	"sync"
	"time"

	cache "github.com/lukaszraczylo/go-tagged-graphql/cache"
	logging "github.com/lukaszraczylo/go-tagged-graphql/logging"
	"golang.org/x/sync/singleflight"
)

type BaseClient struct {
	store          cache.Store
	transport      Transport
	Logger         *logging.Logger
	client         *http.Client
	versions       map[string]uint64
	inflight       singleflight.Group
	endpoint       string
	retries_delay  time.Duration
	retries_number int
	generation     uint64
	max_get_length int
	versionsMu     sync.Mutex
	retries_enable bool
	owns_transport bool
}

// ClientOptions are the collaborators a client can be built with. Zero
// values select the defaults: an in-memory store and an HTTP transport.
type ClientOptions struct {
	Store     cache.Store
	Transport Transport
	Logger    *logging.Logger
}

// TransportRequest is what the dispatcher hands to a Transport.
type TransportRequest struct {
	Headers map[string]string
	URL     string
	Method  string
	Body    []byte
}

// Transport performs one request and returns the decoded response body.
// It is called at most once per dispatch, on its own goroutine.
type Transport interface {
	Do(ctx context.Context, request *TransportRequest) (any, error)
}

type TransportFunc func(ctx context.Context, request *TransportRequest) (any, error)

func (f TransportFunc) Do(ctx context.Context, request *TransportRequest) (any, error) {
	return f(ctx, request)
}

// CacheDirective mirrors the fetch cache modes.
type CacheDirective string

const (
	CacheDefault      CacheDirective = "default"
	CacheNoStore      CacheDirective = "no-store"
	CacheReload       CacheDirective = "reload"
	CacheNoCache      CacheDirective = "no-cache"
	CacheForceCache   CacheDirective = "force-cache"
	CacheOnlyIfCached CacheDirective = "only-if-cached"
)

// bypass reports whether the directive skips reading the cache. An empty
// directive reads it.
func (d CacheDirective) bypass() bool {
	switch d {
	case CacheNoStore, CacheReload, CacheNoCache, CacheDefault:
		return true
	}
	return false
}

type (
	// KeyFunc derives the inner cache key. response is nil before the
	// transport resolves and holds the response afterwards.
	KeyFunc func(variables map[string]any, response any) string
	// MutateFunc rewrites the cached value; cached is nil when absent.
	MutateFunc func(cached any) any
	// ParseFunc reshapes a response before it is cached and delivered.
	ParseFunc func(response any, previous any) any
	// Callback receives the outcome of the transport call.
	Callback func(data any, err error)
)

// Options tune a single dispatch. KeyFunc takes precedence over Key.
type Options struct {
	Headers map[string]string
	KeyFunc KeyFunc
	Mutate  MutateFunc
	Parse   ParseFunc
	Cache   CacheDirective
	Key     string
	Method  string
	Body    []byte
}

type State int

const (
	Pending State = iota
	Resolved
	Errored
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Errored:
		return "errored"
	default:
		return "pending"
	}
}

// Result is what Dispatch knows at the time it returns. A Pending result
// may carry the previously cached value while a refresh is in flight.
type Result struct {
	Data  any
	Err   error
	State State
}
