// Package filters implements inbound predicates applied to a raw platform
// update before it reaches the canonical mapper.
package filters

// Filter is a predicate over a raw platform update (the adapter's own wire
// shape, not yet mapped to canon). Composed by AND via All.
type Filter func(update interface{}) bool

// All composes filters by AND: the result is true only if every filter
// admits the update. An empty filter list always admits.
func All(filters ...Filter) Filter {
	return func(update interface{}) bool {
		for _, f := range filters {
			if !f(update) {
				return false
			}
		}
		return true
	}
}

// AuthorIdFunc extracts the author id from a raw update, returning ok=false
// when the update carries no identifiable author (a system event).
type AuthorIdFunc func(update interface{}) (id string, ok bool)

// UserAllowlist admits updates whose author id is present in allowed.
// An empty allowed set permits everything. Updates with no identifiable
// author are always admitted, since those are treated as system events
// rather than user-originated ones.
func UserAllowlist(allowed []string, authorId AuthorIdFunc) Filter {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	return func(update interface{}) bool {
		if len(set) == 0 {
			return true
		}
		id, ok := authorId(update)
		if !ok {
			return true
		}
		_, permitted := set[id]
		return permitted
	}
}
