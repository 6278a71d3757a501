package gql

import (
	"bytes"
	"net/url"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/lukaszraczylo/go-tagged-graphql/compiler"
)

// serializeVariables flattens variables into sorted dot paths, e.g.
// {"b":{"y":1,"x":2},"a":"s"} becomes a="s"&b.x=2&b.y=1, so field order
// never changes the key. Values go through a JSON round trip first so
// structs and maps key the same way.
func serializeVariables(variables map[string]any) (string, error) {
	raw, err := json.Marshal(variables)
	if err != nil {
		return "", err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var normalized any
	if err := decoder.Decode(&normalized); err != nil {
		return "", err
	}

	buf := getBuffer(len(raw))
	defer putBuffer(buf)
	if err := flatten(buf, "", normalized); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func flatten(buf *bytes.Buffer, path string, value any) error {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			writePair(buf, path, "{}")
			return nil
		}
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := flatten(buf, join(path, key), v[key]); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if len(v) == 0 {
			writePair(buf, path, "[]")
			return nil
		}
		for i, item := range v {
			if err := flatten(buf, join(path, strconv.Itoa(i)), item); err != nil {
				return err
			}
		}
		return nil
	default:
		leaf, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writePair(buf, path, string(leaf))
		return nil
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func writePair(buf *bytes.Buffer, path, value string) {
	if buf.Len() > 0 {
		buf.WriteByte('&')
	}
	if path != "" {
		buf.WriteString(path)
		buf.WriteByte('=')
	}
	buf.WriteString(value)
}

// cacheKey resolves the inner key of a request. response is nil until the
// transport has answered.
func cacheKey(op *compiler.Operation, opts *Options, response any) (string, error) {
	if opts.KeyFunc != nil {
		return opts.KeyFunc(op.Variables, response), nil
	}
	if opts.Key != "" {
		return opts.Key, nil
	}
	if len(op.Variables) == 0 {
		return op.Query, nil
	}
	return serializeVariables(op.Variables)
}

// appendQuery adds an encoded query string to whatever query the endpoint
// already carries.
func appendQuery(endpoint, query string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.RawQuery != "" {
		u.RawQuery += "&" + query
	} else {
		u.RawQuery = query
	}
	return u.String(), nil
}
