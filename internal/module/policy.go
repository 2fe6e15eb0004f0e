package module

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides what happens when two registrations share a key
// (a page name, or an import directory).
type DuplicatePolicy string

const (
	// DuplicateReject fails the build.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateIgnore keeps the first registration and drops later ones.
	DuplicateIgnore DuplicatePolicy = "ignore"
	// DuplicateOverride replaces the first registration in place with the later one.
	DuplicateOverride DuplicatePolicy = "override"
)

// ParseDuplicatePolicy parses a policy name. Empty input yields def.
func ParseDuplicatePolicy(s string, def DuplicatePolicy) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return def, nil
	case DuplicateReject, DuplicateIgnore, DuplicateOverride:
		return p, nil
	default:
		return "", fmt.Errorf("invalid duplicate policy %q: must be one of %q, %q, %q",
			s, DuplicateReject, DuplicateIgnore, DuplicateOverride)
	}
}
