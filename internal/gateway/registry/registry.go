// Package registry holds the immutable index of message shapes and enum
// descriptors. A Registry is built once at startup from an explicit catalog
// and is read-only afterwards, so concurrent lookups need no locking.
package registry

import (
	"strings"

	errspkg "github.com/recordwire/recordgate/internal/gateway/errors"
)

// RequestSuffix is the conventional suffix on declared message names.
// Lookups succeed whether or not the caller supplies it.
const RequestSuffix = "Request"

// ParamSpec declares one named parameter of a message shape.
type ParamSpec struct {
	Name     string
	Optional bool
}

// Shape describes one message the engine's catalog exposes.
type Shape struct {
	// Name is the declared message name, conventionally suffixed "Request".
	Name string
	// Namespace is the catalog namespace the shape belongs to. The response
	// encoder picks the wire prefix from it.
	Namespace string
	// Params lists the declared parameters, in positional order.
	Params []ParamSpec
}

// MessageName returns the shape's name with the Request suffix stripped.
func (s *Shape) MessageName() string {
	return strings.TrimSuffix(s.Name, RequestSuffix)
}

// Param returns the declared parameter spec for name.
func (s *Shape) Param(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Member is one named member of an enumeration.
type Member struct {
	Name  string
	Value int64
}

// Enum describes one enumeration type. Flags marks enumerations whose
// members are independent bits combinable via OR.
type Enum struct {
	Name    string
	Flags   bool
	Members []Member
}

// Member returns the value of the named member.
func (e *Enum) Member(name string) (int64, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// MemberNames decomposes bits into member names in declaration order. For
// non-flags enums it returns the single exact match, if any.
func (e *Enum) MemberNames(bits int64) []string {
	if !e.Flags {
		for _, m := range e.Members {
			if m.Value == bits {
				return []string{m.Name}
			}
		}
		return nil
	}
	var names []string
	for _, m := range e.Members {
		if m.Value != 0 && bits&m.Value == m.Value {
			names = append(names, m.Name)
		}
	}
	if names == nil && bits == 0 {
		for _, m := range e.Members {
			if m.Value == 0 {
				return []string{m.Name}
			}
		}
	}
	return names
}

// Catalog is the explicit registration table a Registry is built from.
// Aliases maps known client-side enum hints to indexed enum names.
type Catalog struct {
	Shapes  []Shape
	Enums   []Enum
	Aliases map[string]string
}

// Registry is the process-lifetime message/enum index.
type Registry struct {
	shapes  map[string]*Shape
	enums   map[string]*Enum
	aliases map[string]string
}

// New builds a Registry from the catalog. The catalog is copied; later
// mutation of the input does not affect the registry.
func New(cat Catalog) (*Registry, error) {
	if len(cat.Shapes) == 0 && len(cat.Enums) == 0 {
		return nil, errspkg.ErrRegistryRequired
	}

	r := &Registry{
		shapes:  make(map[string]*Shape, len(cat.Shapes)*2),
		enums:   make(map[string]*Enum, len(cat.Enums)),
		aliases: make(map[string]string, len(cat.Aliases)),
	}

	for i := range cat.Shapes {
		shape := cat.Shapes[i]
		r.shapes[shape.Name] = &shape
		if trimmed := strings.TrimSuffix(shape.Name, RequestSuffix); trimmed != shape.Name {
			r.shapes[trimmed] = &shape
		}
	}
	for i := range cat.Enums {
		enum := cat.Enums[i]
		r.enums[enum.Name] = &enum
	}
	for hint, target := range cat.Aliases {
		r.aliases[hint] = target
	}
	return r, nil
}

// ResolveShape looks up a message shape by name, with or without the
// Request suffix.
func (r *Registry) ResolveShape(name string) (*Shape, bool) {
	if s, ok := r.shapes[name]; ok {
		return s, true
	}
	s, ok := r.shapes[strings.TrimSuffix(name, RequestSuffix)]
	return s, ok
}

// ResolveEnum looks up an enum descriptor by wire hint: exact name first,
// then the curated alias table. Unknown hints resolve to nothing; the codec
// falls back to a plain string value.
func (r *Registry) ResolveEnum(hint string) (*Enum, bool) {
	if e, ok := r.enums[hint]; ok {
		return e, true
	}
	if target, ok := r.aliases[hint]; ok {
		e, ok := r.enums[target]
		return e, ok
	}
	return nil, false
}
