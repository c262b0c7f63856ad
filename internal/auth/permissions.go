package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Permission is a key from the closed permission vocabulary. The vocabulary
// ships with the code; adding a key means adding a constant here.
type Permission uint8

const (
	PermEventsRead Permission = iota + 1
	PermEventsWrite
	PermStaffRead
	PermStaffWrite
	PermEquipmentRead
	PermEquipmentWrite
	PermDashboardRead
	PermCalendarRead
	PermHistoryRead
	PermAccessManage

	permissionCount = iota
)

// permissionKeys is indexed by Permission; the array length ties it to the
// constant block above.
var permissionKeys = [permissionCount + 1]string{
	PermEventsRead:     "events:read",
	PermEventsWrite:    "events:write",
	PermStaffRead:      "staff:read",
	PermStaffWrite:     "staff:write",
	PermEquipmentRead:  "equipment:read",
	PermEquipmentWrite: "equipment:write",
	PermDashboardRead:  "dashboard:read",
	PermCalendarRead:   "calendar:read",
	PermHistoryRead:    "history:read",
	PermAccessManage:   "access:manage",
}

var permissionDescriptions = [permissionCount + 1]string{
	PermEventsRead:     "View events",
	PermEventsWrite:    "Create, edit and delete events",
	PermStaffRead:      "View staff members",
	PermStaffWrite:     "Create, edit and delete staff members",
	PermEquipmentRead:  "View equipment inventory",
	PermEquipmentWrite: "Create, edit and delete equipment",
	PermDashboardRead:  "View the dashboard",
	PermCalendarRead:   "View the event calendar",
	PermHistoryRead:    "View the change history",
	PermAccessManage:   "Manage user permissions",
}

var permissionByKey = func() map[string]Permission {
	m := make(map[string]Permission, permissionCount)
	for p := Permission(1); p <= permissionCount; p++ {
		m[permissionKeys[p]] = p
	}
	return m
}()

// Vocabulary returns every permission in declaration order.
func Vocabulary() []Permission {
	out := make([]Permission, 0, permissionCount)
	for p := Permission(1); p <= permissionCount; p++ {
		out = append(out, p)
	}
	return out
}

// ParsePermission maps a wire key to a Permission.
func ParsePermission(key string) (Permission, bool) {
	p, ok := permissionByKey[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// Valid reports whether p belongs to the vocabulary.
func (p Permission) Valid() bool {
	return p >= 1 && p <= permissionCount
}

// String returns the wire key, e.g. "events:read".
func (p Permission) String() string {
	if !p.Valid() {
		return fmt.Sprintf("permission(%d)", uint8(p))
	}
	return permissionKeys[p]
}

// Description returns a human readable label for permission management UIs.
func (p Permission) Description() string {
	if !p.Valid() {
		return ""
	}
	return permissionDescriptions[p]
}

func (p Permission) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown permission %d", uint8(p))
	}
	return []byte(permissionKeys[p]), nil
}

func (p *Permission) UnmarshalText(text []byte) error {
	parsed, ok := ParsePermission(string(text))
	if !ok {
		return fmt.Errorf("unknown permission %q", string(text))
	}
	*p = parsed
	return nil
}

// FilterKnown keeps the keys that belong to the vocabulary, dropping unknown
// ones silently. The result is de-duplicated, in vocabulary order, and never nil.
func FilterKnown(keys []string) []Permission {
	seen := make(map[Permission]struct{}, len(keys))
	for _, key := range keys {
		if p, ok := ParsePermission(key); ok {
			seen[p] = struct{}{}
		}
	}
	return sortedSet(seen)
}

// Normalize de-duplicates perms, drops invalid values and sorts them in
// vocabulary order. The result is never nil.
func Normalize(perms []Permission) []Permission {
	seen := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		if p.Valid() {
			seen[p] = struct{}{}
		}
	}
	return sortedSet(seen)
}

// Keys renders perms as wire keys.
func Keys(perms []Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.String())
	}
	return out
}

// Contains reports whether perms holds p.
func Contains(perms []Permission, p Permission) bool {
	for _, candidate := range perms {
		if candidate == p {
			return true
		}
	}
	return false
}

func sortedSet(set map[Permission]struct{}) []Permission {
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionInfo is the wire form of a vocabulary entry.
type PermissionInfo struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// VocabularyInfo lists the vocabulary with descriptions.
func VocabularyInfo() []PermissionInfo {
	out := make([]PermissionInfo, 0, permissionCount)
	for _, p := range Vocabulary() {
		out = append(out, PermissionInfo{Key: p.String(), Description: p.Description()})
	}
	return out
}
