// Package rbac flattens role grants into permission sets. Authorization
// decisions only ever look at permission names, never role names, so role
// structure can change without touching the guard.
package rbac

import (
	"sort"

	"alumnihub/api/internal/models"
)

// Resolve deduplicates the permissions granted through the given roles.
// The result is sorted for stable token payloads; empty input yields an
// empty (non-nil) slice.
func Resolve(roles []models.Role) []string {
	seen := make(map[string]struct{})
	for _, role := range roles {
		for _, perm := range role.Permissions {
			seen[perm.Name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasAll reports whether have contains every permission in required
// (AND semantics). An empty requirement is always satisfied.
func HasAll(have []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, p := range have {
		set[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}
