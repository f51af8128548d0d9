// Package world provides JSON-file-backed storage for the entities,
// places, and world/game-time state that the action pipeline, effect
// applier, and NPC movement controller operate on.
package world

import (
	"github.com/duskward/narrator/pkg/types"
)

// EntityKind classifies a stored entity.
type EntityKind string

// Recognised [EntityKind] values, matching the file-layout directories
// (npcs/, actors/, items/).
const (
	KindNPC   EntityKind = "npc"
	KindActor EntityKind = "actor"
	KindItem  EntityKind = "item"
)

// Resource is a named pool with a current and maximum value (health, stamina,
// mana, …).
type Resource struct {
	Current int
	Max     int
}

// TagInstance is a single tag carried by an item or entity, per the data
// model's TaggedItem record.
type TagInstance struct {
	Name   string
	Stacks int
	Value  float64
	Source string
	Expiry *int64
}

// InventorySlot holds an item ref in a named equipment slot (hand, body, …).
type InventorySlot struct {
	Slot   string
	ItemID string
}

// Entity is the stored representation of an NPC, player actor, or item.
// Not every field is meaningful for every kind: items do not have a
// Location, actors/NPCs do not have Stacks.
type Entity struct {
	ID    string
	Kind  EntityKind
	Name  string

	Location types.Location

	Attributes map[string]int // STR, DEX, etc.
	Resources  map[string]Resource
	Tags       []TagInstance
	Inventory  []InventorySlot
	Awareness  []string // refs this entity is aware of

	// Item-only fields.
	Weight float64
}

// HasTag reports whether e carries a tag named name.
func (e Entity) HasTag(name string) bool {
	for _, t := range e.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// MAG returns an item's total magnitude: the sum of all tag stacks, per the
// data model's TaggedItem record.
func (e Entity) MAG() int {
	total := 0
	for _, t := range e.Tags {
		total += t.Stacks
	}
	return total
}

// WeightMAG returns the step-function MAG contribution of an item's weight:
// ≤5→1, ≤15→2, ≤30→3, ≤50→4, else 5.
func (e Entity) WeightMAG() int {
	switch {
	case e.Weight <= 5:
		return 1
	case e.Weight <= 15:
		return 2
	case e.Weight <= 30:
		return 3
	case e.Weight <= 50:
		return 4
	default:
		return 5
	}
}
