package gql

import (
	"context"
	"net/http"
	"time"

	"github.com/gookit/goutil/envutil"
	cache "github.com/lukaszraczylo/go-tagged-graphql/cache"
	logging "github.com/lukaszraczylo/go-tagged-graphql/logging"
)

const defaultMaxGetLength = 2000

// NewConnection builds a client from the environment.
func NewConnection() (b *BaseClient) {
	logLevelStr := envutil.Getenv("LOG_LEVEL", "info")
	logLevel := logging.GetLogLevel(logLevelStr)

	logger := logging.New()
	logger.SetMinLogLevel(logLevel)

	var transport Transport
	if envutil.Getenv("GRAPHQL_TRANSPORT", "http") == "fasthttp" {
		transport = NewFastHTTPTransport(logger)
	}

	b = NewClient(envutil.Getenv("GRAPHQL_ENDPOINT", "https://api.github.com/graphql"), ClientOptions{
		Store:     newStore(logger),
		Transport: transport,
		Logger:    logger,
	})
	b.max_get_length = envutil.GetInt("GRAPHQL_MAX_GET_LENGTH", defaultMaxGetLength)
	b.retries_enable = envutil.GetBool("GRAPHQL_RETRIES_ENABLE", false)
	b.retries_delay = time.Duration(envutil.GetInt("GRAPHQL_RETRIES_DELAY", 250)) * time.Millisecond
	b.retries_number = envutil.GetInt("GRAPHQL_RETRIES_NUMBER", 3)
	b.configureTransport()

	b.Logger.Debug(&logging.LogMessage{
		Message: "Created new GraphQL client connection",
		Pairs: map[string]interface{}{
			"endpoint":       sanitizeForLogging(b.endpoint),
			"log_level":      logging.LevelNames[logLevel],
			"max_get_length": b.max_get_length,
			"retries":        b.retries_enable,
		},
	})
	return b
}

// newStore picks the cache backend named by GRAPHQL_CACHE_BACKEND. bigcache
// keeps values as JSON off the Go heap; anything else is the sharded map.
func newStore(logger *logging.Logger) cache.Store {
	ttl := time.Duration(envutil.GetInt("GRAPHQL_CACHE_TTL", 0)) * time.Second
	if envutil.Getenv("GRAPHQL_CACHE_BACKEND", "memory") == "bigcache" {
		store, err := cache.NewBigStore(context.Background(), ttl)
		if err == nil {
			return store
		}
		logger.Error(&logging.LogMessage{
			Message: "Can't create bigcache store, using in-memory cache",
			Pairs:   map[string]interface{}{"error": err.Error()},
		})
	}
	return cache.New(ttl)
}

// NewClient builds a dispatcher for endpoint.
func NewClient(endpoint string, options ClientOptions) *BaseClient {
	b := &BaseClient{
		endpoint:       endpoint,
		store:          options.Store,
		transport:      options.Transport,
		Logger:         options.Logger,
		versions:       make(map[string]uint64),
		max_get_length: defaultMaxGetLength,
		retries_number: 1,
	}
	if b.Logger == nil {
		b.Logger = logging.New()
	}
	if b.store == nil {
		b.store = cache.New(0)
	}
	if b.transport == nil {
		b.owns_transport = true
		b.transport = &HTTPTransport{Logger: b.Logger}
		b.configureTransport()
	}
	return b
}

// configureTransport pushes endpoint and retry settings into the default
// HTTP transport. Caller supplied transports are left alone.
func (b *BaseClient) configureTransport() {
	t, ok := b.transport.(*HTTPTransport)
	if !ok || !b.owns_transport {
		return
	}
	if b.client == nil {
		client, err := b.createHttpClient()
		if err != nil {
			b.Logger.Error(&logging.LogMessage{
				Message: "Can't create HTTP client",
				Pairs:   map[string]interface{}{"error": err.Error()},
			})
		} else {
			t.Client = client
		}
	} else {
		t.Client = b.client
	}
	t.Attempts = 1
	if b.retries_enable {
		t.Attempts = b.retries_number
	}
	t.Delay = b.retries_delay
}

func (b *BaseClient) SetEndpoint(endpoint string) {
	b.endpoint = endpoint
	b.configureTransport()
}

func (b *BaseClient) SetHTTPClient(client *http.Client) {
	b.client = client
	b.configureTransport()
}

func (b *BaseClient) SetTransport(transport Transport) {
	b.transport = transport
	b.owns_transport = false
}

// SetStore swaps the cache store. Entries in the previous store are not
// carried over.
func (b *BaseClient) SetStore(store cache.Store) {
	b.versionsMu.Lock()
	defer b.versionsMu.Unlock()
	b.store = store
	b.versions = make(map[string]uint64)
}

func (b *BaseClient) SetMaxGetLength(length int) {
	b.max_get_length = length
}

func (b *BaseClient) SetRetries(enabled bool, attempts int, delay time.Duration) {
	b.retries_enable = enabled
	b.retries_number = attempts
	b.retries_delay = delay
	b.configureTransport()
}

func (b *BaseClient) Store() cache.Store {
	return b.store
}
