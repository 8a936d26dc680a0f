// Package document builds, migrates and backs up the persisted documents.
// Every decoder here is tolerant: a malformed field is replaced by its
// default without rejecting the rest of the document.
package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edunotas/edunotas-api/internal/models"
)

const (
	DefaultClassCount = 12
	DefaultMinutes    = 5
)

// Defaults parameterises freshly created documents.
type Defaults struct {
	ClassCount int
	NegMinutes int
	PosMinutes int
}

func (d Defaults) normalized() Defaults {
	if d.ClassCount <= 0 {
		d.ClassCount = DefaultClassCount
	}
	if d.NegMinutes < 0 {
		d.NegMinutes = 0
	}
	if d.PosMinutes < 0 {
		d.PosMinutes = 0
	}
	return d
}

// ClassID returns the identifier of the n-th default class, starting at 1.
func ClassID(n int) string {
	return fmt.Sprintf("clase_%02d", n)
}

// ClassName returns the default display name of the n-th class.
func ClassName(n int) string {
	return fmt.Sprintf("Clase %d", n)
}

// Default returns a fresh document with empty classes and a paused clock.
func Default(now time.Time, d Defaults) *models.AppState {
	d = d.normalized()
	nowMs := now.UnixMilli()
	state := &models.AppState{
		Version: models.SchemaVersion,
		Classes: make(map[string]*models.Class, d.ClassCount),
		UI: models.UISettings{
			MinCountByClass:    map[string]int{},
			MinPositiveByClass: map[string]int{},
			Clock:              models.ClockState{Running: false, FrozenAtMs: nowMs, LastTickMs: nowMs},
			Decay:              models.DecaySettings{NegMinutesPerPoint: d.NegMinutes, PosMinutesPerPoint: d.PosMinutes},
		},
	}
	fillClasses(state, d.ClassCount)
	return state
}

func fillClasses(state *models.AppState, n int) {
	for i := 1; i <= n; i++ {
		id := ClassID(i)
		if _, ok := state.Classes[id]; !ok {
			state.Classes[id] = &models.Class{Name: ClassName(i), Students: []*models.Student{}}
		}
	}
}

// Migrate decodes a persisted root document of any earlier shape into the
// current schema. The second return value is true when the input was
// unusable and a fresh default document was returned instead.
func Migrate(raw []byte, now time.Time, d Defaults) (*models.AppState, bool) {
	d = d.normalized()
	root, ok := decodeObject(raw)
	if !ok {
		return Default(now, d), true
	}
	classes, ok := decodeObject(root["classes"])
	if !ok {
		return Default(now, d), true
	}

	state := Default(now, d)
	for id, rawClass := range classes {
		state.Classes[id] = migrateClass(id, rawClass)
	}

	if ui, ok := decodeObject(root["ui"]); ok {
		state.UI.MinCountByClass = ui.counts("minCountByClass")
		state.UI.MinPositiveByClass = ui.counts("minPositiveByClass")
		if clock, ok := decodeObject(ui["clock"]); ok {
			state.UI.Clock = migrateClock(clock, now)
		}
		if decay, ok := decodeObject(ui["decay"]); ok {
			state.UI.Decay = models.DecaySettings{
				NegMinutesPerPoint: decay.minutes("negMinutesPerPoint", d.NegMinutes),
				PosMinutesPerPoint: decay.minutes("posMinutesPerPoint", d.PosMinutes),
			}
		}
	}
	return state, false
}

func migrateClass(id string, raw json.RawMessage) *models.Class {
	class := &models.Class{Name: defaultName(id), Students: []*models.Student{}}
	o, ok := decodeObject(raw)
	if !ok {
		return class
	}
	if name, ok := o.str("name"); ok && strings.TrimSpace(name) != "" {
		class.Name = strings.TrimSpace(name)
	}
	students, _ := decodeArray(o["students"])
	ids := make(map[string]struct{}, len(students))
	for _, rawStudent := range students {
		s := migrateStudent(rawStudent)
		if s == nil {
			continue
		}
		if _, dup := ids[s.ID]; dup {
			s.ID = uuid.NewString()
		}
		ids[s.ID] = struct{}{}
		class.Students = append(class.Students, s)
	}
	return class
}

func defaultName(id string) string {
	var n int
	if _, err := fmt.Sscanf(id, "clase_%d", &n); err == nil && n > 0 {
		return ClassName(n)
	}
	return id
}

func migrateStudent(raw json.RawMessage) *models.Student {
	o, ok := decodeObject(raw)
	if !ok {
		return nil
	}
	name, _ := o.str("name")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	id, _ := o.str("id")
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	s := &models.Student{
		ID:            id,
		Name:          name,
		Count:         o.count("count", 0),
		PositiveCount: o.count("positiveCount", 0),
		SpentMs:       o.millis("spentMs", 0),
		Events:        []models.MarkEvent{},
	}
	if s.Count == 0 {
		s.SpentMs = 0
	}

	events, _ := decodeArray(o["events"])
	for _, rawEvent := range events {
		e, ok := decodeObject(rawEvent)
		if !ok {
			continue
		}
		at, okAt := e.number("at")
		kind, _ := e.str("kind")
		if !okAt || at < 0 || !models.MarkKind(kind).Valid() {
			continue
		}
		s.Events = append(s.Events, models.MarkEvent{At: int64(at), Kind: models.MarkKind(kind)})
	}
	return s
}

func migrateClock(o object, now time.Time) models.ClockState {
	nowMs := now.UnixMilli()
	c := models.ClockState{
		Running:    o.boolean("running", false),
		FrozenAtMs: o.millis("frozenAtMs", nowMs),
	}
	c.LastTickMs = o.millis("lastTickMs", c.FrozenAtMs)
	if c.Running {
		if _, ok := o.number("lastTickMs"); !ok {
			c.LastTickMs = nowMs
		}
	}
	return c
}
