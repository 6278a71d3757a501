package gql

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	cache "github.com/lukaszraczylo/go-tagged-graphql/cache"
	"github.com/lukaszraczylo/go-tagged-graphql/compiler"
)

var greetingResponse = map[string]any{"data": map[string]any{"hello": "hi!"}}

const greetingKey = `hello="world"`

func greetingOperation(t *testing.T) *compiler.Operation {
	t.Helper()
	op, ok := compiler.Compile(compiler.Literal("query Greeting{hello}")).Operation("Greeting", map[string]any{"hello": "world"})
	if !ok {
		t.Fatal("Greeting operation missing")
	}
	return op
}

func waitFor(t *testing.T, ch chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked")
	}
	return outcome{}
}

func waitStarted(t *testing.T, transport *fakeTransport) *TransportRequest {
	t.Helper()
	select {
	case request := <-transport.started:
		return request
	case <-time.After(2 * time.Second):
		t.Fatal("transport was not called")
	}
	return nil
}

func (suite *Tests) Test_Dispatch_PendingThenResolved() {
	transport := newFakeTransport(respondWith(greetingResponse))
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()

	first := client.Dispatch(context.Background(), op, nil, callback)
	assert.Equal(Pending, first.State)
	assert.Nil(first.Data)
	assert.NoError(first.Err)

	got := waitFor(suite.T(), done)
	assert.NoError(got.err)
	assert.Equal(greetingResponse, got.data)

	second := client.Dispatch(context.Background(), op, nil, callback)
	assert.Equal(Resolved, second.State)
	assert.Equal(greetingResponse, second.Data)

	assert.EqualValues(1, transport.calls.Load())
	assert.Empty(done, "cache hits do not call back")
}

func (suite *Tests) Test_Dispatch_VariablesSelectSlot() {
	transport := newFakeTransport(func(request *TransportRequest) (any, error) {
		return request.URL, nil
	})
	client := CreateTestClient(transport)
	factory := compiler.Compile(compiler.Literal("query User($id: ID){ user(id: $id) { name } }"))
	first, _ := factory.Operation("User", map[string]any{"id": 1})
	second, _ := factory.Operation("User", map[string]any{"id": 2})

	callback, done := capture()
	client.Dispatch(context.Background(), first, nil, callback)
	firstURL := waitFor(suite.T(), done).data
	client.Dispatch(context.Background(), second, nil, callback)
	secondURL := waitFor(suite.T(), done).data
	assert.NotEqual(firstURL, secondURL)

	again, _ := factory.Operation("User", map[string]any{"id": 1})
	result := client.Dispatch(context.Background(), again, nil, callback)
	assert.Equal(Resolved, result.State)
	assert.Equal(firstURL, result.Data)
	assert.EqualValues(2, transport.calls.Load())
}

func (suite *Tests) Test_Dispatch_TemplatesDoNotShareSlots() {
	transport := newFakeTransport(respondWith(greetingResponse))
	client := CreateTestClient(transport)
	callback, done := capture()

	first := compiler.Compile(compiler.Literal("query Greeting{hello}")).Call(nil)
	second := compiler.Compile(compiler.Literal("query Greeting{hello}")).Call(nil)
	assert.NotEqual(first.Key, second.Key)

	client.Dispatch(context.Background(), first, nil, callback)
	waitFor(suite.T(), done)
	result := client.Dispatch(context.Background(), second, nil, callback)
	assert.Equal(Pending, result.State)
	waitFor(suite.T(), done)
	assert.EqualValues(2, transport.calls.Load())
}

func (suite *Tests) Test_Dispatch_RequestEncoding() {
	suite.T().Run("short query uses GET", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		client := CreateTestClient(transport)
		callback, done := capture()

		client.Dispatch(context.Background(), greetingOperation(t), &Options{Headers: map[string]string{"X-Trace": "1"}}, callback)
		waitFor(t, done)

		request := transport.lastRequest()
		assert.Equal(http.MethodGet, request.Method)
		assert.True(strings.HasPrefix(request.URL, "https://example.com/graphql?query=query%20Greeting%7Bhello%7D&variables="), request.URL)
		assert.True(strings.HasSuffix(request.URL, "&operationName=Greeting"), request.URL)
		assert.Nil(request.Body)
		assert.Equal("1", request.Headers["X-Trace"])
		assert.NotContains(request.Headers, "Content-Type")
	})

	suite.T().Run("long URL switches to POST", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		client := CreateTestClient(transport)
		callback, done := capture()
		factory := compiler.Compile(compiler.Literal("query Echo($text: String){ echo(text: $text) }"))
		op, _ := factory.Operation("Echo", map[string]any{"text": strings.Repeat("a", defaultMaxGetLength)})

		client.Dispatch(context.Background(), op, nil, callback)
		waitFor(t, done)

		request := transport.lastRequest()
		assert.Equal(http.MethodPost, request.Method)
		assert.Equal("https://example.com/graphql", request.URL)
		assert.Equal("application/json", request.Headers["Content-Type"])
		want, err := json.Marshal(op.Payload())
		assert.NoError(err)
		assert.JSONEq(string(want), string(request.Body))
	})

	suite.T().Run("GET stops one byte short of the limit", func(t *testing.T) {
		op := greetingOperation(t)
		queryString, err := op.QueryString()
		assert.NoError(err)
		getURL, err := appendQuery("https://example.com/graphql", queryString)
		assert.NoError(err)

		for _, tc := range []struct {
			method string
			limit  int
		}{
			{limit: len(getURL), method: http.MethodPost},
			{limit: len(getURL) + 1, method: http.MethodGet},
		} {
			transport := newFakeTransport(respondWith(greetingResponse))
			client := CreateTestClient(transport)
			client.SetMaxGetLength(tc.limit)
			callback, done := capture()

			client.Dispatch(context.Background(), op, nil, callback)
			waitFor(t, done)
			assert.Equal(tc.method, transport.lastRequest().Method, "limit %d for a %d byte URL", tc.limit, len(getURL))
		}
	})

	suite.T().Run("length limit is configurable", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		client := CreateTestClient(transport)
		client.SetMaxGetLength(10)
		callback, done := capture()

		client.Dispatch(context.Background(), greetingOperation(t), nil, callback)
		waitFor(t, done)
		assert.Equal(http.MethodPost, transport.lastRequest().Method)
	})

	suite.T().Run("endpoint query is kept", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		client := CreateTestClient(transport)
		client.SetEndpoint("https://example.com/graphql?token=abc")
		callback, done := capture()

		client.Dispatch(context.Background(), greetingOperation(t), nil, callback)
		waitFor(t, done)
		assert.True(strings.HasPrefix(transport.lastRequest().URL, "https://example.com/graphql?token=abc&query="))
	})

	suite.T().Run("custom body method and headers", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		client := CreateTestClient(transport)
		callback, done := capture()
		body := []byte(`{"query":"{ custom }"}`)

		client.Dispatch(context.Background(), greetingOperation(t), &Options{
			Body:    body,
			Method:  http.MethodPut,
			Headers: map[string]string{"Authorization": "Bearer x"},
		}, callback)
		waitFor(t, done)

		request := transport.lastRequest()
		assert.Equal(http.MethodPut, request.Method)
		assert.Equal("https://example.com/graphql", request.URL)
		assert.Equal(body, request.Body)
		assert.Equal("Bearer x", request.Headers["Authorization"])
		assert.NotContains(request.Headers, "Content-Type")
	})
}

func (suite *Tests) Test_Dispatch_CustomBodySkipsCacheRead() {
	transport := newFakeTransport(respondWith(greetingResponse))
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()

	client.Dispatch(context.Background(), op, nil, callback)
	waitFor(suite.T(), done)

	result := client.Dispatch(context.Background(), op, &Options{Body: []byte(`{}`)}, callback)
	assert.Equal(Pending, result.State)
	assert.Equal(greetingResponse, result.Data)
	waitFor(suite.T(), done)
	assert.EqualValues(2, transport.calls.Load())
}

func (suite *Tests) Test_Dispatch_Mutation() {
	response := map[string]any{"data": map[string]any{"addUser": map[string]any{"id": "42"}}}
	transport := newFakeTransport(respondWith(response))
	client := CreateTestClient(transport)
	factory := compiler.Compile(compiler.Literal("mutation AddUser($name: String){ addUser(name: $name) { id } }"))
	op, _ := factory.Operation("AddUser", map[string]any{"name": "x"})
	callback, done := capture()

	first := client.Dispatch(context.Background(), op, &Options{KeyFunc: KeyFromResponse("data.addUser.id")}, callback)
	assert.Equal(Pending, first.State)
	got := waitFor(suite.T(), done)
	assert.Equal(response, got.data)
	assert.Equal(http.MethodPost, transport.lastRequest().Method)
	assert.Equal("application/json", transport.lastRequest().Headers["Content-Type"])

	cached, found := client.Store().Get(op.Key, "42")
	assert.True(found)
	assert.Equal(response, cached)

	// mutations are never answered from the cache
	second := client.Dispatch(context.Background(), op, nil, callback)
	assert.Equal(Pending, second.State)
	waitFor(suite.T(), done)
	assert.EqualValues(2, transport.calls.Load())
}

func (suite *Tests) Test_Dispatch_MutateIsVisibleUntilResponse() {
	transport := newFakeTransport(respondWith(greetingResponse))
	transport.gate = make(chan struct{})
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()

	first := client.Dispatch(context.Background(), op, nil, callback)
	assert.Equal(Pending, first.State)
	waitStarted(suite.T(), transport)

	var seen any = "unset"
	optimistic := client.Dispatch(context.Background(), op, &Options{Mutate: func(previous any) any {
		seen = previous
		return "optimistic"
	}}, nil)
	assert.Nil(seen)
	assert.Equal(Resolved, optimistic.State)
	assert.Equal("optimistic", optimistic.Data)

	read := client.Dispatch(context.Background(), op, nil, nil)
	assert.Equal(Resolved, read.State)
	assert.Equal("optimistic", read.Data)

	close(transport.gate)
	waitFor(suite.T(), done)

	final := client.Dispatch(context.Background(), op, nil, nil)
	assert.Equal(Resolved, final.State)
	assert.Equal(greetingResponse, final.Data)
	assert.EqualValues(1, transport.calls.Load())
}

func (suite *Tests) Test_Dispatch_MutateReceivesCachedValue() {
	client := CreateTestClient(newFakeTransport(respondWith(greetingResponse)))
	op := greetingOperation(suite.T())

	client.Dispatch(context.Background(), op, &Options{Mutate: func(any) any { return 1 }}, nil)
	result := client.Dispatch(context.Background(), op, &Options{Mutate: func(previous any) any {
		return previous.(int) + 1
	}}, nil)
	assert.Equal(Resolved, result.State)
	assert.Equal(2, result.Data)
}

func (suite *Tests) Test_Dispatch_ErrorEvictsSlot() {
	boom := errors.New("boom")
	transport := newFakeTransport(func(*TransportRequest) (any, error) {
		return nil, boom
	})
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()

	client.Dispatch(context.Background(), op, &Options{Mutate: func(any) any { return "seeded" }}, nil)

	result := client.Dispatch(context.Background(), op, &Options{Cache: CacheReload}, callback)
	assert.Equal(Pending, result.State)
	assert.Equal("seeded", result.Data)

	got := waitFor(suite.T(), done)
	assert.ErrorIs(got.err, boom)
	assert.Nil(got.data)

	_, found := client.Store().Get(op.Key, greetingKey)
	assert.False(found)

	retry := client.Dispatch(context.Background(), op, nil, callback)
	assert.Equal(Pending, retry.State)
	assert.Nil(retry.Data)
	waitFor(suite.T(), done)
	assert.EqualValues(2, transport.calls.Load())
}

func (suite *Tests) Test_Dispatch_ErrorKeepsNewerWrite() {
	transport := newFakeTransport(func(*TransportRequest) (any, error) {
		return nil, errors.New("boom")
	})
	transport.gate = make(chan struct{})
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()

	client.Dispatch(context.Background(), op, nil, callback)
	waitStarted(suite.T(), transport)
	client.Dispatch(context.Background(), op, &Options{Mutate: func(any) any { return "newer" }}, nil)

	close(transport.gate)
	assert.Error(waitFor(suite.T(), done).err)

	cached, found := client.Store().Get(op.Key, greetingKey)
	assert.True(found)
	assert.Equal("newer", cached)
}

func (suite *Tests) Test_Dispatch_VersionsFollowSlots() {
	boom := errors.New("boom")
	failing := false
	transport := newFakeTransport(func(*TransportRequest) (any, error) {
		if failing {
			return nil, boom
		}
		return greetingResponse, nil
	})
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()

	client.Dispatch(context.Background(), op, nil, callback)
	waitFor(suite.T(), done)
	assert.Len(client.versions, 1)

	failing = true
	client.Dispatch(context.Background(), op, &Options{Cache: CacheReload}, callback)
	assert.ErrorIs(waitFor(suite.T(), done).err, boom)
	assert.Empty(client.versions)

	client.Dispatch(context.Background(), op, &Options{Mutate: func(any) any { return "a" }}, nil)
	client.Dispatch(context.Background(), op, &Options{Key: "other", Mutate: func(any) any { return "b" }}, nil)
	assert.Len(client.versions, 2)

	client.Purge(op.Key)
	assert.Empty(client.versions)
	_, found := client.Store().Get(op.Key, "other")
	assert.False(found)

	client.Dispatch(context.Background(), op, &Options{Mutate: func(any) any { return "c" }}, nil)
	client.SetStore(cache.New(0))
	assert.Empty(client.versions)
}

func (suite *Tests) Test_Dispatch_StoreWriteFailure() {
	storeErr := errors.New("store full")
	transport := newFakeTransport(respondWith(greetingResponse))
	client := NewClient("https://example.com/graphql", ClientOptions{
		Store:     &failingStore{Cache: cache.New(0), err: storeErr},
		Transport: transport,
		Logger:    GetTestLogger(),
	})
	op := greetingOperation(suite.T())
	callback, done := capture()

	mutated := client.Dispatch(context.Background(), op, &Options{Mutate: func(any) any { return "optimistic" }}, callback)
	assert.Equal(Errored, mutated.State)
	assert.ErrorIs(mutated.Err, storeErr)
	assert.ErrorIs(waitFor(suite.T(), done).err, storeErr)
	assert.Empty(client.versions)

	// a response that can't be cached is still delivered
	client.Dispatch(context.Background(), op, nil, callback)
	got := waitFor(suite.T(), done)
	assert.NoError(got.err)
	assert.Equal(greetingResponse, got.data)
	assert.Empty(client.versions)
}

func (suite *Tests) Test_Dispatch_OnlyIfCached() {
	transport := newFakeTransport(respondWith(greetingResponse))
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()
	opts := &Options{Cache: CacheOnlyIfCached}

	miss := client.Dispatch(context.Background(), op, opts, callback)
	assert.Equal(Pending, miss.State)
	assert.Nil(miss.Data)
	assert.EqualValues(0, transport.calls.Load())
	assert.Empty(done)

	_, err := client.Query(context.Background(), op, opts)
	assert.ErrorIs(err, ErrNotCached)

	client.Dispatch(context.Background(), op, &Options{Mutate: func(any) any { return "cached" }}, nil)
	hit := client.Dispatch(context.Background(), op, opts, callback)
	assert.Equal(Resolved, hit.State)
	assert.Equal("cached", hit.Data)
	assert.EqualValues(0, transport.calls.Load())
}

func (suite *Tests) Test_Dispatch_CoalescesConcurrentReads() {
	transport := newFakeTransport(respondWith(greetingResponse))
	transport.gate = make(chan struct{})
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()

	for i := 0; i < 3; i++ {
		result := client.Dispatch(context.Background(), op, nil, callback)
		assert.Equal(Pending, result.State)
	}
	waitStarted(suite.T(), transport)
	close(transport.gate)

	for i := 0; i < 3; i++ {
		got := waitFor(suite.T(), done)
		assert.NoError(got.err)
		assert.Equal(greetingResponse, got.data)
	}
	assert.EqualValues(1, transport.calls.Load())
}

func (suite *Tests) Test_Dispatch_CacheDirectives() {
	suite.T().Run("no-store skips the write", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		client := CreateTestClient(transport)
		op := greetingOperation(t)
		callback, done := capture()

		client.Dispatch(context.Background(), op, &Options{Cache: CacheNoStore}, callback)
		assert.Equal(greetingResponse, waitFor(t, done).data)
		_, found := client.Store().Get(op.Key, greetingKey)
		assert.False(found)

		result := client.Dispatch(context.Background(), op, nil, callback)
		assert.Equal(Pending, result.State)
		waitFor(t, done)
		assert.EqualValues(2, transport.calls.Load())
	})

	for _, directive := range []CacheDirective{CacheReload, CacheNoCache, CacheDefault} {
		suite.T().Run(string(directive)+" returns stale data and refreshes", func(t *testing.T) {
			calls := 0
			transport := newFakeTransport(func(*TransportRequest) (any, error) {
				calls++
				return calls, nil
			})
			client := CreateTestClient(transport)
			op := greetingOperation(t)
			callback, done := capture()

			client.Dispatch(context.Background(), op, nil, callback)
			waitFor(t, done)

			result := client.Dispatch(context.Background(), op, &Options{Cache: directive}, callback)
			assert.Equal(Pending, result.State)
			assert.Equal(1, result.Data)
			assert.Equal(2, waitFor(t, done).data)

			cached, _ := client.Store().Get(op.Key, greetingKey)
			assert.Equal(2, cached)
		})
	}

	suite.T().Run("force-cache reads the cache", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		client := CreateTestClient(transport)
		op := greetingOperation(t)
		callback, done := capture()

		client.Dispatch(context.Background(), op, nil, callback)
		waitFor(t, done)
		result := client.Dispatch(context.Background(), op, &Options{Cache: CacheForceCache}, callback)
		assert.Equal(Resolved, result.State)
		assert.EqualValues(1, transport.calls.Load())
	})
}

func (suite *Tests) Test_Dispatch_SharedStore() {
	store, err := cache.NewBigStore(context.Background(), time.Minute)
	assert.NoError(err)
	defer store.Close()

	firstTransport := newFakeTransport(respondWith(greetingResponse))
	secondTransport := newFakeTransport(respondWith(greetingResponse))
	first := NewClient("https://example.com/graphql", ClientOptions{Store: store, Transport: firstTransport, Logger: GetTestLogger()})
	second := NewClient("https://example.com/graphql", ClientOptions{Store: store, Transport: secondTransport, Logger: GetTestLogger()})
	op := greetingOperation(suite.T())
	callback, done := capture()

	first.Dispatch(context.Background(), op, nil, callback)
	waitFor(suite.T(), done)

	result := second.Dispatch(context.Background(), op, nil, callback)
	assert.Equal(Resolved, result.State)
	assert.Equal(greetingResponse, result.Data)
	assert.EqualValues(0, secondTransport.calls.Load())
}

func (suite *Tests) Test_Dispatch_ExplicitKey() {
	transport := newFakeTransport(respondWith(greetingResponse))
	client := CreateTestClient(transport)
	op := greetingOperation(suite.T())
	callback, done := capture()

	client.Dispatch(context.Background(), op, &Options{Key: "greeting"}, callback)
	waitFor(suite.T(), done)

	cached, found := client.Store().Get(op.Key, "greeting")
	assert.True(found)
	assert.Equal(greetingResponse, cached)
	_, found = client.Store().Get(op.Key, greetingKey)
	assert.False(found)
}

func (suite *Tests) Test_Dispatch_Parse() {
	suite.T().Run("parsed value is delivered and cached", func(t *testing.T) {
		client := CreateTestClient(newFakeTransport(respondWith(greetingResponse)))
		op := greetingOperation(t)
		callback, done := capture()

		client.Dispatch(context.Background(), op, &Options{Parse: ParseAt("data.hello")}, callback)
		assert.Equal("hi!", waitFor(t, done).data)

		result := client.Dispatch(context.Background(), op, nil, nil)
		assert.Equal(Resolved, result.State)
		assert.Equal("hi!", result.Data)
	})

	suite.T().Run("parse sees the previous value", func(t *testing.T) {
		client := CreateTestClient(newFakeTransport(respondWith(greetingResponse)))
		op := greetingOperation(t)
		callback, done := capture()
		count := func(response any, previous any) any {
			n, _ := previous.(int)
			return n + 1
		}

		client.Dispatch(context.Background(), op, &Options{Parse: count, Cache: CacheReload}, callback)
		assert.Equal(1, waitFor(t, done).data)
		client.Dispatch(context.Background(), op, &Options{Parse: count, Cache: CacheReload}, callback)
		assert.Equal(2, waitFor(t, done).data)
	})
}

func (suite *Tests) Test_Dispatch_SynchronousFailures() {
	suite.T().Run("nil operation", func(t *testing.T) {
		client := CreateTestClient(newFakeTransport(respondWith(nil)))
		callback, done := capture()

		result := client.Dispatch(context.Background(), nil, nil, callback)
		assert.Equal(Errored, result.State)
		assert.ErrorIs(result.Err, ErrNilOperation)
		assert.ErrorIs(waitFor(t, done).err, ErrNilOperation)
	})

	suite.T().Run("unserializable variables", func(t *testing.T) {
		transport := newFakeTransport(respondWith(nil))
		client := CreateTestClient(transport)
		callback, done := capture()
		op := compiler.Parse("query Q($c: Any){ q(c: $c) }", map[string]any{"c": make(chan int)})

		result := client.Dispatch(context.Background(), op, nil, callback)
		assert.Equal(Errored, result.State)
		assert.Error(waitFor(t, done).err)
		assert.EqualValues(0, transport.calls.Load())
	})

	suite.T().Run("unparsable endpoint", func(t *testing.T) {
		transport := newFakeTransport(respondWith(nil))
		client := CreateTestClient(transport)
		client.SetEndpoint("://broken")
		callback, done := capture()

		result := client.Dispatch(context.Background(), greetingOperation(t), nil, callback)
		assert.Equal(Errored, result.State)
		assert.Error(waitFor(t, done).err)
		assert.EqualValues(0, transport.calls.Load())
	})
}

func (suite *Tests) Test_DispatchQuery_RawNamespace() {
	transport := newFakeTransport(respondWith(greetingResponse))
	client := CreateTestClient(transport)
	callback, done := capture()

	result := client.DispatchQuery(context.Background(), "{ hello }", nil, nil, callback)
	assert.Equal(Pending, result.State)
	waitFor(suite.T(), done)

	cached, found := client.Store().Get(compiler.RawNamespace, "{ hello }")
	assert.True(found)
	assert.Equal(greetingResponse, cached)
}

func (suite *Tests) Test_Query() {
	suite.T().Run("waits for the transport then reads the cache", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		client := CreateTestClient(transport)
		op := greetingOperation(t)

		data, err := client.Query(context.Background(), op, nil)
		assert.NoError(err)
		assert.Equal(greetingResponse, data)

		data, err = client.Query(context.Background(), op, nil)
		assert.NoError(err)
		assert.Equal(greetingResponse, data)
		assert.EqualValues(1, transport.calls.Load())
	})

	suite.T().Run("raw query", func(t *testing.T) {
		client := CreateTestClient(newFakeTransport(respondWith(greetingResponse)))
		data, err := client.QueryRaw(context.Background(), "query { hello }", map[string]any{"x": 1}, nil)
		assert.NoError(err)
		assert.Equal(greetingResponse, data)
	})

	suite.T().Run("transport error", func(t *testing.T) {
		boom := errors.New("boom")
		client := CreateTestClient(newFakeTransport(func(*TransportRequest) (any, error) {
			return nil, boom
		}))
		_, err := client.Query(context.Background(), greetingOperation(t), nil)
		assert.ErrorIs(err, boom)
	})

	suite.T().Run("nil operation", func(t *testing.T) {
		client := CreateTestClient(newFakeTransport(respondWith(nil)))
		_, err := client.Query(context.Background(), nil, nil)
		assert.ErrorIs(err, ErrNilOperation)
	})

	suite.T().Run("context cancellation", func(t *testing.T) {
		transport := newFakeTransport(respondWith(greetingResponse))
		transport.gate = make(chan struct{})
		defer close(transport.gate)
		client := CreateTestClient(transport)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-transport.started
			cancel()
		}()
		_, err := client.Query(ctx, greetingOperation(t), nil)
		assert.ErrorIs(err, context.Canceled)
	})
}

func (suite *Tests) Test_Dispatch_HTTPTransport() {
	var hits atomic.Int32
	server := StartMockServer(&hits)
	defer server.Close()

	client := NewClient(server.URL, ClientOptions{Logger: GetTestLogger()})
	viewer := compiler.Compile(compiler.Literal("query Viewer { viewer { login } }")).Call(nil)

	data, err := client.Query(context.Background(), viewer, nil)
	assert.NoError(err)
	assert.Equal(map[string]any{"data": map[string]any{"viewer": map[string]any{"login": "mockuser"}}}, data)

	_, err = client.Query(context.Background(), viewer, nil)
	assert.NoError(err)
	assert.EqualValues(1, hits.Load())

	create := compiler.Compile(compiler.Literal(`mutation CreateDragon { createDragon(name: "x") { id } }`)).Call(nil)
	data, err = client.Query(context.Background(), create, &Options{Parse: ParseAt("data.createDragon.method")})
	assert.NoError(err)
	assert.Equal(http.MethodPost, data)

	unknown := compiler.Compile(compiler.Literal("query Unknown { nothing }")).Call(nil)
	data, err = client.Query(context.Background(), unknown, &Options{Parse: ParseAt("errors.0.message")})
	assert.NoError(err)
	assert.Equal("Unknown query", data)
}
