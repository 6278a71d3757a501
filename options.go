package gql

import (
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// KeyFromResponse keys a cache entry by the value found at path (gjson
// syntax) in the response, such as "data.createUser.id" for a mutation that
// should cache itself under the id the server assigned. Before the response
// arrives, or when the path is missing, it falls back to the serialized
// variables.
func KeyFromResponse(path string) KeyFunc {
	return func(variables map[string]any, response any) string {
		if response != nil {
			if raw, err := json.Marshal(response); err == nil {
				if r := gjson.GetBytes(raw, path); r.Exists() {
					return r.String()
				}
			}
		}
		key, err := serializeVariables(variables)
		if err != nil {
			return ""
		}
		return key
	}
}

// ParseAt caches and delivers only the part of the response at path.
func ParseAt(path string) ParseFunc {
	return func(response any, previous any) any {
		raw, err := json.Marshal(response)
		if err != nil {
			return response
		}
		r := gjson.GetBytes(raw, path)
		if !r.Exists() {
			return nil
		}
		return r.Value()
	}
}
