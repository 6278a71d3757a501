package gql

import (
	"context"
	"errors"
	"strings"

	"github.com/lukaszraczylo/go-tagged-graphql/compiler"
	libpack_logger "github.com/lukaszraczylo/go-tagged-graphql/logging"
)

var (
	ErrNilOperation = errors.New("gql: nil operation")
	ErrNotCached    = errors.New("gql: no cached value for only-if-cached request")
)

// Dispatch returns the best value currently known for op and, unless the
// cache can answer, starts a transport call on another goroutine. callback
// (which may be nil) receives the outcome of that call; it is not invoked
// when the result comes straight from the cache.
//
// Callers that may read the cache and share a namespace and key are
// coalesced onto one transport call; every coalesced callback sees the same
// outcome, computed with the options of the first caller.
func (b *BaseClient) Dispatch(ctx context.Context, op *compiler.Operation, opts *Options, callback Callback) Result {
	if opts == nil {
		opts = &Options{}
	}
	if op == nil {
		notify(callback, nil, ErrNilOperation)
		return Result{State: Errored, Err: ErrNilOperation}
	}

	namespace := op.Key
	if namespace == "" {
		namespace = compiler.RawNamespace
	}
	key, err := cacheKey(op, opts, nil)
	if err != nil {
		return b.fail(callback, nil, err)
	}

	useCache := opts.Body == nil && op.Type != compiler.KindMutation && !opts.Cache.bypass()

	cached, found := b.store.Get(namespace, key)
	mutated := false
	if opts.Mutate != nil {
		cached = opts.Mutate(cached)
		found = true
		mutated = true
		if err := b.write(namespace, key, cached); err != nil {
			return b.fail(callback, nil, err)
		}
	}

	if found && (useCache || mutated) {
		b.Logger.Debug(&libpack_logger.LogMessage{
			Message: "Cache hit",
			Pairs:   map[string]interface{}{"namespace": namespace, "mutated": mutated},
		})
		return Result{State: Resolved, Data: cached}
	}

	if opts.Cache == CacheOnlyIfCached {
		b.Logger.Debug(&libpack_logger.LogMessage{
			Message: "Cache miss for only-if-cached request",
			Pairs:   map[string]interface{}{"namespace": namespace},
		})
		return Result{State: Pending}
	}

	request, err := b.buildRequest(op, opts)
	if err != nil {
		return b.fail(callback, cached, err)
	}

	b.Logger.Debug(&libpack_logger.LogMessage{
		Message: "Dispatching operation",
		Pairs: map[string]interface{}{
			"namespace": namespace,
			"operation": op.Name,
			"variables": sanitizeVariables(op.Variables),
			"cached":    found,
		},
	})

	version := b.version(namespace, key)
	run := func() (any, error) {
		return b.execute(ctx, op, opts, request, namespace, key, version)
	}

	if useCache {
		ch := b.inflight.DoChan(slotKey(namespace, key), run)
		go func() {
			r := <-ch
			notify(callback, r.Val, r.Err)
		}()
	} else {
		go func() {
			data, err := run()
			notify(callback, data, err)
		}()
	}

	result := Result{State: Pending}
	if found {
		result.Data = cached
	}
	return result
}

// DispatchQuery dispatches a bare query string. Every bare query shares the
// compiler.RawNamespace namespace.
func (b *BaseClient) DispatchQuery(ctx context.Context, query string, variables map[string]any, opts *Options, callback Callback) Result {
	return b.Dispatch(ctx, compiler.Parse(query, variables), opts, callback)
}

// Query dispatches op and waits for its value.
func (b *BaseClient) Query(ctx context.Context, op *compiler.Operation, opts *Options) (any, error) {
	type outcome struct {
		data any
		err  error
	}
	done := make(chan outcome, 1)

	result := b.Dispatch(ctx, op, opts, func(data any, err error) {
		done <- outcome{data: data, err: err}
	})
	switch result.State {
	case Resolved:
		return result.Data, nil
	case Errored:
		return nil, result.Err
	}
	if opts != nil && opts.Cache == CacheOnlyIfCached {
		return nil, ErrNotCached
	}

	select {
	case o := <-done:
		return o.data, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// QueryRaw is Query for a bare query string.
func (b *BaseClient) QueryRaw(ctx context.Context, query string, variables map[string]any, opts *Options) (any, error) {
	return b.Query(ctx, compiler.Parse(query, variables), opts)
}

func (b *BaseClient) execute(ctx context.Context, op *compiler.Operation, opts *Options, request *TransportRequest, namespace, key string, version uint64) (any, error) {
	response, err := b.transport.Do(ctx, request)
	if err != nil {
		b.Logger.Error(&libpack_logger.LogMessage{
			Message: "Error executing query",
			Pairs: map[string]interface{}{
				"error":     err.Error(),
				"operation": op.Name,
				"namespace": namespace,
			},
		})
		b.evict(namespace, key, version)
		return nil, err
	}

	if opts.KeyFunc != nil {
		key = opts.KeyFunc(op.Variables, response)
	}

	value := response
	if opts.Parse != nil {
		previous, _ := b.store.Get(namespace, key)
		value = opts.Parse(response, previous)
	}

	if opts.Cache != CacheNoStore {
		if err := b.write(namespace, key, value); err != nil {
			b.Logger.Error(&libpack_logger.LogMessage{
				Message: "Can't cache response",
				Pairs: map[string]interface{}{
					"error":     err.Error(),
					"operation": op.Name,
					"namespace": namespace,
				},
			})
		}
	}
	return value, nil
}

func (b *BaseClient) fail(callback Callback, cached any, err error) Result {
	b.Logger.Error(&libpack_logger.LogMessage{
		Message: "Can't dispatch operation",
		Pairs:   map[string]interface{}{"error": err.Error()},
	})
	notify(callback, nil, err)
	return Result{State: Errored, Err: err, Data: cached}
}

func notify(callback Callback, data any, err error) {
	if callback != nil {
		callback(data, err)
	}
}

func slotKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// write stores a value and stamps the slot with a fresh generation so older
// in-flight failures no longer evict it. Generations are never reused, so a
// dropped counter cannot come back equal to a stale one.
func (b *BaseClient) write(namespace, key string, value any) error {
	b.versionsMu.Lock()
	defer b.versionsMu.Unlock()
	if err := b.store.Set(namespace, key, value); err != nil {
		return err
	}
	b.generation++
	b.versions[slotKey(namespace, key)] = b.generation
	return nil
}

func (b *BaseClient) version(namespace, key string) uint64 {
	b.versionsMu.Lock()
	defer b.versionsMu.Unlock()
	return b.versions[slotKey(namespace, key)]
}

// evict drops a slot and its version after a failed request, unless
// something was written to it since the request started.
func (b *BaseClient) evict(namespace, key string, since uint64) {
	slot := slotKey(namespace, key)
	b.versionsMu.Lock()
	defer b.versionsMu.Unlock()
	if b.versions[slot] != since {
		return
	}
	b.store.Delete(namespace, key)
	delete(b.versions, slot)
}

// Purge drops every cached value of a namespace, such as a compiled
// template's Key, together with its slot versions.
func (b *BaseClient) Purge(namespace string) {
	prefix := slotKey(namespace, "")
	b.versionsMu.Lock()
	defer b.versionsMu.Unlock()
	b.store.Purge(namespace)
	for slot := range b.versions {
		if strings.HasPrefix(slot, prefix) {
			delete(b.versions, slot)
		}
	}
}
