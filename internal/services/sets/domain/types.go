// Package domain defines the types and ports for the set registry
package domain

import (
	"time"

	"oaiserver/internal/core/oai"
	"oaiserver/internal/core/query"
)

// Set is a named, optionally query defined subset of records
type Set struct {
	Spec          string    `json:"spec"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	SearchPattern *string   `json:"search_pattern,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Parent is the enclosing spec, "" at the top level
func (s Set) Parent() string { return oai.ParentSpec(s.Spec) }

// Pattern returns the search pattern or ""
func (s Set) Pattern() string {
	if s.SearchPattern == nil {
		return ""
	}
	return *s.SearchPattern
}

// SetInput creates a set
type SetInput struct {
	Spec          string  `json:"spec" validate:"required,max=255"`
	Name          string  `json:"name" validate:"required,max=255"`
	Description   string  `json:"description" validate:"max=4096"`
	SearchPattern *string `json:"search_pattern" validate:"omitempty,max=4096"`
}

// SetPatch updates a set; nil fields are left alone
// Spec may be sent but must equal the current spec
type SetPatch struct {
	Spec          *string `json:"spec"`
	Name          *string `json:"name" validate:"omitempty,max=255"`
	Description   *string `json:"description" validate:"omitempty,max=4096"`
	SearchPattern *string `json:"search_pattern" validate:"omitempty,max=4096"`
	// ClearSearchPattern turns the set back into a manual-only set
	ClearSearchPattern bool `json:"clear_search_pattern"`
}

// Snapshot is a consistent view of every set with its pattern compiled
type Snapshot struct {
	Sets    []Set
	Queries map[string]query.Query
	bySpec  map[string]int
}

// NewSnapshot indexes sets, which must already be ordered by spec
func NewSnapshot(sets []Set, queries map[string]query.Query) *Snapshot {
	s := &Snapshot{Sets: sets, Queries: queries, bySpec: make(map[string]int, len(sets))}
	if s.Queries == nil {
		s.Queries = map[string]query.Query{}
	}
	for i, set := range sets {
		s.bySpec[set.Spec] = i
	}
	return s
}

// Len is the number of sets
func (s *Snapshot) Len() int { return len(s.Sets) }

// Has reports whether spec exists
func (s *Snapshot) Has(spec string) bool {
	_, ok := s.bySpec[spec]
	return ok
}

// Get returns the set for spec
func (s *Snapshot) Get(spec string) (Set, bool) {
	i, ok := s.bySpec[spec]
	if !ok {
		return Set{}, false
	}
	return s.Sets[i], true
}
