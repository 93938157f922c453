package session

import (
	"sort"
	"sync"
)

// RoleTable maps role names to permission sets. Guests register roles during
// start-up and guards consult them per request, so reads dominate; Register
// is the only mutation path.
type RoleTable struct {
	mu    sync.RWMutex
	perms map[string]map[string]struct{}
}

// NewRoleTable returns an empty table.
func NewRoleTable() *RoleTable {
	return &RoleTable{perms: make(map[string]map[string]struct{})}
}

// Register adds permissions to a role, creating it as needed. Registering
// the same role again extends its set.
func (t *RoleTable) Register(role string, perms ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.perms[role]
	if set == nil {
		set = make(map[string]struct{}, len(perms))
		t.perms[role] = set
	}
	for _, p := range perms {
		if p != "" {
			set[p] = struct{}{}
		}
	}
}

// Can reports whether the role holds the permission.
func (t *RoleTable) Can(role, perm string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.perms[role][perm]
	return ok
}

// Roles returns the registered role names in sorted order.
func (t *RoleTable) Roles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roles := make([]string, 0, len(t.perms))
	for role := range t.perms {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
