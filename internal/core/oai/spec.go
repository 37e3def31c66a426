package oai

import (
	"regexp"
	"strings"

	perr "oaiserver/internal/platform/errors"
)

// SpecSeparator joins hierarchical set spec segments
const SpecSeparator = ":"

// segment is the protocol's unreserved character class
var segment = regexp.MustCompile(`^[A-Za-z0-9\-_.!~*'()]+$`)

// ValidateSpec checks syntax and depth; maxDepth <= 0 disables the depth check
func ValidateSpec(spec string, maxDepth int) error {
	if spec == "" {
		return perr.WithField(perr.Validationf("spec is required"), "spec")
	}
	parts := strings.Split(spec, SpecSeparator)
	for _, p := range parts {
		if !segment.MatchString(p) {
			return perr.WithField(perr.Validationf("spec %q has an invalid segment %q", spec, p), "spec")
		}
	}
	if maxDepth > 0 && len(parts) > maxDepth {
		return perr.WithField(perr.Validationf("spec %q is deeper than %d levels", spec, maxDepth), "spec")
	}
	return nil
}

// ParentSpec returns the enclosing spec, or "" for a top level set
func ParentSpec(spec string) string {
	i := strings.LastIndex(spec, SpecSeparator)
	if i < 0 {
		return ""
	}
	return spec[:i]
}

// Ancestors lists every enclosing spec from the root down, excluding spec itself
func Ancestors(spec string) []string {
	var out []string
	for p := ParentSpec(spec); p != ""; p = ParentSpec(p) {
		out = append([]string{p}, out...)
	}
	return out
}

// Covers reports whether member is spec itself or one of its descendants
func Covers(spec, member string) bool {
	return member == spec || strings.HasPrefix(member, spec+SpecSeparator)
}

// AnyCovered reports whether any of members is covered by spec
func AnyCovered(spec string, members []string) bool {
	for _, m := range members {
		if Covers(spec, m) {
			return true
		}
	}
	return false
}
