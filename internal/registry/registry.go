// ABOUTME: OperationDescriptor type and the immutable Registry it lives in.
// ABOUTME: Provides name lookup and a sorted catalog listing for the oracle.

package registry

import (
	"sort"
)

// Field describes one declared input field of an operation. All fields
// are text-valued; no numeric or boolean schema inference is attempted.
type Field struct {
	Description string
	Required    bool
}

// OperationDescriptor describes one remotely callable operation and the
// backend that owns it. Descriptors are built once at discovery and
// never mutated.
type OperationDescriptor struct {
	Name        string
	Description string
	BackendID   string
	Fields      map[string]Field
}

// Requires reports whether the named input field is declared required.
func (d OperationDescriptor) Requires(field string) bool {
	f, ok := d.Fields[field]
	return ok && f.Required
}

// RequiredFields returns the sorted names of all required fields.
func (d OperationDescriptor) RequiredFields() []string {
	var names []string
	for name, f := range d.Fields {
		if f.Required {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Registry is the process-wide operation catalog. It is immutable after
// Discover returns, so concurrent runs may share it without locking.
type Registry struct {
	ops map[string]OperationDescriptor
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (OperationDescriptor, bool) {
	d, ok := r.ops[name]
	return d, ok
}

// List returns every registered descriptor sorted by name. The sorted
// order keeps the catalog presented to the oracle stable across runs.
func (r *Registry) List() []OperationDescriptor {
	out := make([]OperationDescriptor, 0, len(r.ops))
	for _, d := range r.ops {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every registered operation name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(r.ops)
}
