// Package formats holds the metadata serializers a repository can disseminate
package formats

import (
	"slices"
	"strings"

	"oaiserver/internal/core/query"
	perr "oaiserver/internal/platform/errors"
)

// Format describes one metadataPrefix
type Format struct {
	Prefix    string `json:"metadataPrefix"`
	Schema    string `json:"schema"`
	Namespace string `json:"metadataNamespace"`
}

// Serializer renders record content in one format
type Serializer interface {
	Format() Format
	// CanDisseminate reports whether doc has enough content for this format
	CanDisseminate(doc query.Document) bool
	Serialize(doc query.Document) ([]byte, error)
}

// Registry maps metadata prefixes to serializers, in registration order
type Registry struct {
	order []string
	by    map[string]Serializer
}

// NewRegistry registers ss; a repeated prefix keeps its first position
func NewRegistry(ss ...Serializer) *Registry {
	r := &Registry{by: make(map[string]Serializer, len(ss))}
	for _, s := range ss {
		p := s.Format().Prefix
		if _, ok := r.by[p]; !ok {
			r.order = append(r.order, p)
		}
		r.by[p] = s
	}
	return r
}

// Builtin returns every serializer this package ships
func Builtin() *Registry { return NewRegistry(DublinCore{}) }

// Select narrows r to the named prefixes; unknown names fail
func (r *Registry) Select(prefixes []string) (*Registry, error) {
	var ss []Serializer
	for _, p := range prefixes {
		s, ok := r.by[strings.TrimSpace(p)]
		if !ok {
			return nil, perr.InvalidArgf("unknown metadata format %q (have %v)", p, r.order)
		}
		ss = append(ss, s)
	}
	if len(ss) == 0 {
		return nil, perr.InvalidArgf("no metadata formats selected")
	}
	return NewRegistry(ss...), nil
}

// Has reports whether prefix is registered
func (r *Registry) Has(prefix string) bool {
	_, ok := r.by[prefix]
	return ok
}

// Get resolves a prefix or fails with cannotDisseminateFormat
func (r *Registry) Get(prefix string) (Serializer, error) {
	if s, ok := r.by[prefix]; ok {
		return s, nil
	}
	return nil, cannot(prefix)
}

// Formats lists every registered format
func (r *Registry) Formats() []Format {
	out := make([]Format, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.by[p].Format())
	}
	return out
}

// For lists the formats able to disseminate doc
func (r *Registry) For(doc query.Document) []Format {
	var out []Format
	for _, p := range r.order {
		if s := r.by[p]; s.CanDisseminate(doc) {
			out = append(out, s.Format())
		}
	}
	return out
}

// Serialize renders doc as prefix
func (r *Registry) Serialize(doc query.Document, prefix string) ([]byte, error) {
	s, err := r.Get(prefix)
	if err != nil {
		return nil, err
	}
	if !s.CanDisseminate(doc) {
		return nil, cannot(prefix)
	}
	return s.Serialize(doc)
}

// Prefixes lists registered prefixes in order
func (r *Registry) Prefixes() []string { return slices.Clone(r.order) }

func cannot(prefix string) error {
	return perr.WithField(perr.Newf(perr.ErrorCodeCannotDisseminateFormat, "metadata format %q is not supported", prefix), "metadataPrefix")
}
