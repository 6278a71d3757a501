package compiler

import (
	"iter"
	"net/url"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// Kind classifies an operation definition.
type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindSubscription Kind = "subscription"
	KindFragment     Kind = "fragment"
)

// RawNamespace is the cache namespace shared by every operation built from a
// bare query string, which has no template identity of its own.
const RawNamespace = "string"

var whitespacePattern = regexp.MustCompile(`\s+`)

// Operation is one fully rendered GraphQL request. It is built fresh for
// every call and is not modified afterwards.
type Operation struct {
	Variables map[string]any
	Name      string
	Query     string
	Type      Kind
	// Key identifies the compiled template the operation came from and is
	// used as its cache namespace.
	Key string

	// definitions holds the operation body followed by every fragment
	// definition it pulled in, each exactly once.
	definitions []string
}

// Payload is the plain data projection sent as a POST body.
type Payload struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName,omitempty"`
}

func (o *Operation) Payload() Payload {
	return Payload{
		Query:         o.Query,
		Variables:     o.Variables,
		OperationName: o.Name,
	}
}

func (o *Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Payload())
}

// All yields the query, the variables and, when set, the operation name.
func (o *Operation) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if !yield("query", o.Query) {
			return
		}
		if !yield("variables", o.Variables) {
			return
		}
		if o.Name != "" {
			yield("operationName", o.Name)
		}
	}
}

// QueryString encodes the operation for a GET request:
// query=...&variables=...[&operationName=...]. The query has its whitespace
// collapsed.
func (o *Operation) QueryString() (string, error) {
	variables, err := json.Marshal(o.Variables)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("query=")
	sb.WriteString(escape(CollapseWhitespace(o.Query)))
	sb.WriteString("&variables=")
	sb.WriteString(escape(string(variables)))
	if o.Name != "" {
		sb.WriteString("&operationName=")
		sb.WriteString(escape(o.Name))
	}
	return sb.String(), nil
}

func (o *Operation) String() string {
	return o.Query
}

// CollapseWhitespace turns every whitespace run into a single space and trims.
func CollapseWhitespace(query string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(query, " "))
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func normalizeVariables(variables map[string]any) map[string]any {
	if variables == nil {
		return map[string]any{}
	}
	return variables
}
