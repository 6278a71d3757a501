package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile("(" + spreadMarker + ")?" + placeholderOpen + `(\d+)` + placeholderClose)

// render substitutes every placeholder in text. It returns the rendered body
// and, separately, the fragment definitions pulled in by interpolated
// fragment operations, deduplicated and in order of first use. Definitions
// already present in the body are not repeated.
func render(text string, variables map[string]any, values []any) (string, []string) {
	var fragments []string
	seen := make(map[string]bool)
	register := func(op *Operation) {
		for _, def := range op.definitions {
			if seen[def] {
				continue
			}
			seen[def] = true
			fragments = append(fragments, def)
		}
	}

	var sb strings.Builder
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		sb.WriteString(text[last:m[0]])
		last = m[1]

		spread := m[2] >= 0
		index, err := strconv.Atoi(text[m[4]:m[5]])
		if err != nil || index >= len(values) {
			continue
		}
		sb.WriteString(interpolate(values[index], spread, variables, register))
	}
	sb.WriteString(text[last:])

	body := strings.TrimSpace(sb.String())
	kept := fragments[:0]
	for _, def := range fragments {
		if !strings.Contains(body, def) {
			kept = append(kept, def)
		}
	}
	return body, kept
}

func interpolate(value any, spread bool, variables map[string]any, register func(*Operation)) string {
	prefix := ""
	if spread {
		prefix = spreadOperator
	}

	switch v := resolve(value, variables).(type) {
	case nil:
		return ""
	case *Operation:
		if v == nil {
			return ""
		}
		if v.Type != KindFragment {
			return prefix + v.Query
		}
		register(v)
		if spread {
			return spreadOperator + v.Name
		}
		return ""
	case []string:
		return prefix + strings.Join(v, "")
	case string:
		return prefix + v
	default:
		return prefix + fmt.Sprint(v)
	}
}

func resolve(value any, variables map[string]any) any {
	switch v := value.(type) {
	case Func:
		if v != nil {
			return v(variables)
		}
		return nil
	case func(map[string]any) any:
		if v != nil {
			return v(variables)
		}
		return nil
	case *Factory:
		if v != nil {
			return v.Call(variables)
		}
		return nil
	}
	return value
}
