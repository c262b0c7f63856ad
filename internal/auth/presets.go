package auth

import "strings"

// Preset is a named bundle of permissions used to pre-fill a permission set.
// Presets are compiled in and are never stored or referenced after use.
type Preset struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

const (
	PresetAdministrator = "administrator"
	PresetManager       = "manager"
	PresetCoordinator   = "coordinator"
	PresetStaff         = "staff"
	PresetViewer        = "viewer"
)

var presets = []Preset{
	{
		ID:          PresetAdministrator,
		Name:        "Administrator",
		Description: "Full access including permission management",
		Permissions: Vocabulary(),
	},
	{
		ID:          PresetManager,
		Name:        "Manager",
		Description: "Manage events, staff and equipment; read the change history",
		Permissions: []Permission{
			PermEventsRead, PermEventsWrite,
			PermStaffRead, PermStaffWrite,
			PermEquipmentRead, PermEquipmentWrite,
			PermDashboardRead, PermCalendarRead,
			PermHistoryRead,
		},
	},
	{
		ID:          PresetCoordinator,
		Name:        "Event coordinator",
		Description: "Plan events and allocate equipment",
		Permissions: []Permission{
			PermEventsRead, PermEventsWrite,
			PermStaffRead,
			PermEquipmentRead, PermEquipmentWrite,
			PermDashboardRead, PermCalendarRead,
		},
	},
	{
		ID:          PresetStaff,
		Name:        "Staff",
		Description: "See the schedule, colleagues and equipment",
		Permissions: []Permission{
			PermEventsRead, PermStaffRead, PermEquipmentRead, PermCalendarRead,
		},
	},
	{
		ID:          PresetViewer,
		Name:        "Viewer",
		Description: "Read-only access to events, the calendar and the dashboard",
		Permissions: []Permission{
			PermEventsRead, PermCalendarRead, PermDashboardRead,
		},
	},
}

// Presets returns the preset catalog. Callers get copies.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, clonePreset(p))
	}
	return out
}

// PresetByID looks up a preset, case-insensitively.
func PresetByID(id string) (Preset, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range presets {
		if p.ID == id {
			return clonePreset(p), true
		}
	}
	return Preset{}, false
}

func clonePreset(p Preset) Preset {
	p.Permissions = Normalize(p.Permissions)
	return p
}
