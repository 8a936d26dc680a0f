package models

import "sort"

// SchemaVersion is the version written by the current migration.
const SchemaVersion = 2

// Class is a named roster kept in insertion order.
type Class struct {
	Name     string     `json:"name"`
	Students []*Student `json:"students"`
}

// FindStudent returns the student with the given id or nil.
func (c *Class) FindStudent(id string) *Student {
	if c == nil {
		return nil
	}
	for _, s := range c.Students {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// HasName reports whether another student already uses the name (case-insensitive).
func (c *Class) HasName(name, exceptID string) bool {
	key := NameKey(name)
	for _, s := range c.Students {
		if s.ID != exceptID && NameKey(s.Name) == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the class.
func (c *Class) Clone() *Class {
	if c == nil {
		return nil
	}
	cp := &Class{Name: c.Name, Students: make([]*Student, len(c.Students))}
	for i, s := range c.Students {
		cp.Students[i] = s.Clone()
	}
	return cp
}

// ClockState is the persisted global pause/resume clock. While paused the
// effective time stays at FrozenAtMs; LastTickMs anchors elapsed deltas.
type ClockState struct {
	Running    bool  `json:"running"`
	FrozenAtMs int64 `json:"frozenAtMs"`
	LastTickMs int64 `json:"lastTickMs"`
}

// MaxMinutesPerPoint caps the per-mark cost accepted from settings and backups.
const MaxMinutesPerPoint = 1440

// DecaySettings holds whole minutes per mark.
type DecaySettings struct {
	NegMinutesPerPoint int `json:"negMinutesPerPoint"`
	PosMinutesPerPoint int `json:"posMinutesPerPoint"`
}

// UISettings is the settings sub-document of the root state.
type UISettings struct {
	MinCountByClass    map[string]int `json:"minCountByClass"`
	MinPositiveByClass map[string]int `json:"minPositiveByClass"`
	Clock              ClockState     `json:"clock"`
	Decay              DecaySettings  `json:"decay"`
}

// AppState is the root persisted document.
type AppState struct {
	Version int               `json:"version"`
	Classes map[string]*Class `json:"classes"`
	UI      UISettings        `json:"ui"`
}

// ClassIDs returns the class ids in display order.
func (s *AppState) ClassIDs() []string {
	ids := make([]string, 0, len(s.Classes))
	for id := range s.Classes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the whole document.
func (s *AppState) Clone() *AppState {
	if s == nil {
		return nil
	}
	cp := &AppState{
		Version: s.Version,
		Classes: make(map[string]*Class, len(s.Classes)),
		UI: UISettings{
			MinCountByClass:    make(map[string]int, len(s.UI.MinCountByClass)),
			MinPositiveByClass: make(map[string]int, len(s.UI.MinPositiveByClass)),
			Clock:              s.UI.Clock,
			Decay:              s.UI.Decay,
		},
	}
	for id, c := range s.Classes {
		cp.Classes[id] = c.Clone()
	}
	for id, n := range s.UI.MinCountByClass {
		cp.UI.MinCountByClass[id] = n
	}
	for id, n := range s.UI.MinPositiveByClass {
		cp.UI.MinPositiveByClass[id] = n
	}
	return cp
}
