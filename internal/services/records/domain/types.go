// Package domain defines the record types and ports
package domain

import (
	"maps"
	"slices"
	"time"

	"oaiserver/internal/core/oai"

	"github.com/google/uuid"
)

// Record is a stored metadata record
type Record struct {
	ID         int64          `json:"id"`
	UUID       uuid.UUID      `json:"uuid"`
	OAIID      string         `json:"oai_id"`
	Content    map[string]any `json:"content"`
	Sets       []string       `json:"sets"`
	ManualSets []string       `json:"manual_sets"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty"`
}

// Deleted reports whether the record is a tombstone
func (r *Record) Deleted() bool { return r.DeletedAt != nil }

// Clone copies the record; content is copied one level deep
func (r *Record) Clone() *Record {
	c := *r
	c.Content = maps.Clone(r.Content)
	c.Sets = slices.Clone(r.Sets)
	c.ManualSets = slices.Clone(r.ManualSets)
	if r.DeletedAt != nil {
		d := *r.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

// Input creates a record
type Input struct {
	Content    map[string]any `json:"content" validate:"required"`
	ManualSets []string       `json:"manual_sets" validate:"omitempty,dive,required"`
}

// ContentInput replaces a record's content
type ContentInput struct {
	Content map[string]any `json:"content" validate:"required"`
}

// SetRef names a set for manual assignment
type SetRef struct {
	Spec string `json:"spec" validate:"required"`
}

// DeletedFilter selects which tombstones a listing includes
type DeletedFilter struct {
	Include bool
	// Since drops tombstones older than this when set
	Since *time.Time
}

// Filter narrows record listings
type Filter struct {
	// AfterID is the exclusive lower bound on id
	AfterID int64
	// Set matches records in the set or any descendant
	Set     string
	Window  oai.Window
	Deleted DeletedFilter
}

// Matches reports whether r passes f; storage backends without SQL use it
func (f Filter) Matches(r *Record) bool {
	if r.ID <= f.AfterID {
		return false
	}
	if f.Set != "" && !oai.AnyCovered(f.Set, r.Sets) {
		return false
	}
	if !f.Window.Contains(r.UpdatedAt) {
		return false
	}
	if r.DeletedAt != nil {
		if !f.Deleted.Include {
			return false
		}
		if f.Deleted.Since != nil && r.DeletedAt.Before(*f.Deleted.Since) {
			return false
		}
	}
	return true
}

// Stats summarizes a recompute run
type Stats struct {
	Scanned   int64 `json:"scanned"`
	Changed   int64 `json:"changed"`
	Unchanged int64 `json:"unchanged"`
	Failed    int64 `json:"failed"`
}
