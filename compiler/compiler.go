// Package compiler turns tagged GraphQL templates into reusable operation
// factories.
//
// A template is a list of literal segments with values interpolated between
// them. The segments are wrapped once with Literal and the returned pointer
// is the template identity: compiling the same pointer again hands back the
// same Factory, while an identical but separately built Strings is compiled
// anew.
//
//	var greetingQuery = compiler.Literal(`query Greeting($name: String) { hello(name: $name) { `, ` } }`)
//
//	factory := compiler.Compile(greetingQuery, "message")
//	op := factory.Call(map[string]any{"name": "world"})
package compiler

import (
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	placeholderOpen  = "\x00"
	placeholderClose = "\x01"
	spreadMarker     = "\x02"
	spreadOperator   = "..."

	DefaultCacheSize = 1024
)

var (
	definitionPattern = regexp.MustCompile(`\b(query|mutation|subscription|fragment)\b\s*([_A-Za-z][_0-9A-Za-z]*)?\s*(\([^)]*\))?\s*(?:on\s+[_A-Za-z][_0-9A-Za-z]*)?\s*(?:@[^{]*)?\{`)
	spreadPattern     = regexp.MustCompile(`\.\.\.\s*([_A-Za-z][_0-9A-Za-z]*)`)

	templateCounter atomic.Uint64
	defaultCompiler = MustNew(DefaultCacheSize)
)

// Strings holds the literal segments of a template. Its address is the
// template identity.
type Strings struct {
	parts []string
}

func Literal(parts ...string) *Strings {
	return &Strings{parts: append([]string(nil), parts...)}
}

func (s *Strings) Parts() []string {
	return append([]string(nil), s.parts...)
}

// Func is an interpolated value evaluated against the call-time variables.
type Func func(variables map[string]any) any

// Compiler memoizes factories by template identity in a size bounded LRU.
type Compiler struct {
	memo *lru.Cache[*Strings, *Factory]
}

func New(size int) (*Compiler, error) {
	memo, err := lru.New[*Strings, *Factory](size)
	if err != nil {
		return nil, err
	}
	return &Compiler{memo: memo}, nil
}

func MustNew(size int) *Compiler {
	c, err := New(size)
	if err != nil {
		panic(err)
	}
	return c
}

// Compile uses the process wide compiler.
func Compile(s *Strings, values ...any) *Factory {
	return defaultCompiler.Compile(s, values...)
}

// Compile returns the factory for s, building it on first use. Values are
// bound when the factory is built; later calls with the same s reuse them.
func (c *Compiler) Compile(s *Strings, values ...any) *Factory {
	if f, ok := c.memo.Get(s); ok {
		return f
	}
	f := newFactory(s.parts, values)
	if previous, ok, _ := c.memo.PeekOrAdd(s, f); ok {
		return previous
	}
	return f
}

func (c *Compiler) Len() int {
	return c.memo.Len()
}

type descriptor struct {
	kind  Kind
	name  string
	raw   string
	start int
	end   int
}

// buildTemplate joins the segments with index placeholders. A segment ending
// in a spread operator, trailing whitespace aside, gives up the "..." to a
// spread marker so the value can decide how it is spread.
func buildTemplate(parts []string) string {
	var sb strings.Builder
	for i, part := range parts {
		if i == len(parts)-1 {
			sb.WriteString(part)
			break
		}
		if trimmed := strings.TrimRight(part, " \t\r\n"); strings.HasSuffix(trimmed, spreadOperator) {
			sb.WriteString(strings.TrimSuffix(trimmed, spreadOperator))
			sb.WriteString(spreadMarker)
		} else {
			sb.WriteString(part)
		}
		sb.WriteString(placeholderOpen)
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(placeholderClose)
	}
	return sb.String()
}

// scan finds every operation and fragment definition. Only keywords outside
// any selection set start a definition, so a field named "query" or
// "subscription" stays part of its operation. Each definition spans from its
// keyword to the start of the next one; the last takes the rest of the text.
func scan(text string) []descriptor {
	matches := topLevel(text, definitionPattern.FindAllStringSubmatchIndex(text, -1))
	descriptors := make([]descriptor, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		d := descriptor{
			kind:  Kind(text[m[2]:m[3]]),
			start: m[0],
			end:   end,
			raw:   text[m[0]:end],
		}
		if m[4] >= 0 {
			d.name = text[m[4]:m[5]]
		}
		descriptors = append(descriptors, d)
	}
	return descriptors
}

// topLevel keeps the matches that start at brace depth zero. Braces inside
// string literals are not counted.
func topLevel(text string, matches [][]int) [][]int {
	kept := matches[:0]
	depth, pos, inString := 0, 0, false
	for _, m := range matches {
		for ; pos < m[0]; pos++ {
			c := text[pos]
			switch {
			case inString:
				if c == '\\' {
					pos++
				} else if c == '"' {
					inString = false
				}
			case c == '"':
				inString = true
			case c == '{':
				depth++
			case c == '}':
				if depth > 0 {
					depth--
				}
			}
		}
		if depth == 0 && !inString {
			kept = append(kept, m)
		}
	}
	return kept
}

// spreads lists the fragment names spread in text, skipping inline
// fragments ("... on Type").
func spreads(text string) []string {
	var names []string
	for _, m := range spreadPattern.FindAllStringSubmatch(text, -1) {
		if m[1] == "on" {
			continue
		}
		names = append(names, m[1])
	}
	return names
}

// attachFragments appends the definition of every fragment spread in raw,
// repeating until nothing new is added so fragments may spread fragments.
func attachFragments(raw, self string, fragments map[string]descriptor) string {
	included := map[string]bool{self: true}
	pending := raw
	for {
		var added []string
		for _, name := range spreads(pending) {
			if included[name] {
				continue
			}
			fragment, ok := fragments[name]
			if !ok {
				continue
			}
			included[name] = true
			added = append(added, strings.TrimSpace(fragment.raw))
		}
		if len(added) == 0 {
			return raw
		}
		pending = strings.Join(added, " ")
		raw = strings.TrimSpace(raw) + " " + pending
	}
}

// Parse builds an operation from a bare query string. It lives in the
// RawNamespace and takes its type and name from the definitions found.
func Parse(query string, variables map[string]any) *Operation {
	kind, name := classify(scan(query))
	return &Operation{
		Name:        name,
		Variables:   normalizeVariables(variables),
		Query:       query,
		Type:        kind,
		Key:         RawNamespace,
		definitions: []string{query},
	}
}

// classify picks the type and name of a whole document: the first operation
// wins, a document of fragments only is a fragment, and anything else is an
// anonymous query.
func classify(descriptors []descriptor) (Kind, string) {
	for _, d := range descriptors {
		if d.kind != KindFragment {
			return d.kind, d.name
		}
	}
	if len(descriptors) > 0 {
		return KindFragment, descriptors[0].name
	}
	return KindQuery, ""
}
