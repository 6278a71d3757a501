package compiler

import (
	"sort"
	"strconv"
	"strings"
)

type definition struct {
	kind Kind
	name string
	raw  string
}

// Factory is a compiled template. Call renders the whole template; every
// named definition in it can be rendered on its own through Operation.
type Factory struct {
	key         string
	template    string
	values      []any
	whole       definition
	definitions map[string]definition
	order       []string
}

func newFactory(parts []string, values []any) *Factory {
	template := buildTemplate(parts)
	descriptors := scan(template)

	fragments := make(map[string]descriptor)
	for _, d := range descriptors {
		if d.kind == KindFragment && d.name != "" {
			fragments[d.name] = d
		}
	}

	f := &Factory{
		key:         "template-" + strconv.FormatUint(templateCounter.Add(1), 10),
		template:    template,
		values:      values,
		definitions: make(map[string]definition, len(descriptors)),
	}

	kind, name := classify(descriptors)
	f.whole = definition{kind: kind, name: name, raw: template}

	for _, d := range descriptors {
		if d.name == "" {
			continue
		}
		if _, exists := f.definitions[d.name]; exists {
			continue
		}
		f.definitions[d.name] = definition{
			kind: d.kind,
			name: d.name,
			raw:  attachFragments(d.raw, d.name, fragments),
		}
		f.order = append(f.order, d.name)
	}
	return f
}

// Key is the cache namespace of every operation this factory builds.
func (f *Factory) Key() string {
	return f.key
}

// Call renders the whole template as one operation.
func (f *Factory) Call(variables map[string]any) *Operation {
	return f.build(f.whole, variables)
}

// Operation renders a named operation or fragment.
func (f *Factory) Operation(name string, variables map[string]any) (*Operation, bool) {
	def, ok := f.definitions[name]
	if !ok {
		return nil, false
	}
	return f.build(def, variables), true
}

// Fragment renders a named fragment only.
func (f *Factory) Fragment(name string, variables map[string]any) (*Operation, bool) {
	def, ok := f.definitions[name]
	if !ok || def.kind != KindFragment {
		return nil, false
	}
	return f.build(def, variables), true
}

// Names lists the callable operations in template order; fragments are left
// out.
func (f *Factory) Names() []string {
	var names []string
	for _, name := range f.order {
		if f.definitions[name].kind != KindFragment {
			names = append(names, name)
		}
	}
	return names
}

// FragmentNames lists the fragments defined in the template, sorted.
func (f *Factory) FragmentNames() []string {
	var names []string
	for name, def := range f.definitions {
		if def.kind == KindFragment {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (f *Factory) build(def definition, variables map[string]any) *Operation {
	variables = normalizeVariables(variables)
	body, fragments := render(def.raw, variables, f.values)

	query := body
	if len(fragments) > 0 {
		query = body + " " + strings.Join(fragments, " ")
	}

	return &Operation{
		Name:        def.name,
		Variables:   variables,
		Query:       query,
		Type:        def.kind,
		Key:         f.key,
		definitions: append([]string{body}, fragments...),
	}
}
