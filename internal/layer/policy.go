package layer

import (
	"fmt"
	"strings"
)

// ScalarPolicy decides which fragment wins when two fragments set the same
// non-map key.
type ScalarPolicy string

// ListPolicy decides how two lists under the same key combine.
type ListPolicy string

const (
	LastWins  ScalarPolicy = "last-wins"
	FirstWins ScalarPolicy = "first-wins"

	// ListAppend concatenates lists in fragment order.
	ListAppend ListPolicy = "append"
	// ListReplace treats lists like scalars, so the scalar policy picks one.
	ListReplace ListPolicy = "replace"
)

// MergePolicy is the override policy applied while reducing fragments.
//
// Maps always merge key by key, recursively. A key whose values have
// different kinds in two fragments (a map in one, a scalar in the other) is
// decided by the scalar policy. Null values never override anything, but a
// null key no earlier fragment set is kept as null.
type MergePolicy struct {
	Scalars ScalarPolicy
	Lists   ListPolicy
}

// DefaultPolicy returns last-wins scalars with appended lists.
func DefaultPolicy() MergePolicy {
	return MergePolicy{Scalars: LastWins, Lists: ListAppend}
}

// ParsePolicy builds a MergePolicy from configuration strings. Empty values
// fall back to DefaultPolicy.
func ParsePolicy(scalars, lists string) (MergePolicy, error) {
	p := DefaultPolicy()

	switch s := ScalarPolicy(strings.ToLower(strings.TrimSpace(scalars))); s {
	case "":
	case LastWins, FirstWins:
		p.Scalars = s
	default:
		return p, fmt.Errorf("invalid scalar merge policy %q: must be one of %q, %q", scalars, LastWins, FirstWins)
	}

	switch l := ListPolicy(strings.ToLower(strings.TrimSpace(lists))); l {
	case "":
	case ListAppend, ListReplace:
		p.Lists = l
	default:
		return p, fmt.Errorf("invalid list merge policy %q: must be one of %q, %q", lists, ListAppend, ListReplace)
	}

	return p, nil
}

// merge folds src into dest in place. It has the signature koanf expects from
// koanf.WithMergeFunc.
func (p MergePolicy) merge(src, dest map[string]any) error {
	for key, sv := range src {
		dv, exists := dest[key]
		if sv == nil {
			if !exists {
				dest[key] = nil
			}
			continue
		}
		if !exists || dv == nil {
			dest[key] = deepCopy(sv)
			continue
		}

		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dv.(map[string]any); ok {
				if err := p.merge(sm, dm); err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				continue
			}
		}

		if sl, ok := sv.([]any); ok && p.Lists == ListAppend {
			if dl, ok := dv.([]any); ok {
				out := make([]any, 0, len(dl)+len(sl))
				out = append(out, dl...)
				for _, v := range sl {
					out = append(out, deepCopy(v))
				}
				dest[key] = out
				continue
			}
		}

		if p.Scalars == LastWins {
			dest[key] = deepCopy(sv)
		}
	}
	return nil
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}
