// Package place maintains the reverse place→occupant index (C13) and the
// radius-bounded available-targets query built on top of it.
package place

import (
	"sync"

	"github.com/duskward/narrator/internal/world"
)

// entry is one place's occupant sets.
type entry struct {
	npcs   map[string]bool
	actors map[string]bool
}

func newEntry() *entry {
	return &entry{npcs: make(map[string]bool), actors: make(map[string]bool)}
}

// Index is a reverse map `place_id -> {npcs, actors}`, kept consistent with
// entity-location updates by the caller invoking [Index.Move] whenever an
// entity's location changes.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewIndex returns an empty [Index].
func NewIndex() *Index {
	return &Index{entries: make(map[string]*entry)}
}

// Move records that ref (of the given kind) left oldPlaceID (if non-empty)
// and entered newPlaceID (if non-empty).
func (idx *Index) Move(ref string, kind world.EntityKind, oldPlaceID, newPlaceID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if oldPlaceID != "" {
		if e, ok := idx.entries[oldPlaceID]; ok {
			delete(e.npcs, ref)
			delete(e.actors, ref)
		}
	}
	if newPlaceID == "" {
		return
	}
	e, ok := idx.entries[newPlaceID]
	if !ok {
		e = newEntry()
		idx.entries[newPlaceID] = e
	}
	switch kind {
	case world.KindNPC:
		e.npcs[ref] = true
	case world.KindActor:
		e.actors[ref] = true
	}
}

// Remove drops ref from every set at placeID, regardless of kind.
func (idx *Index) Remove(ref, placeID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if e, ok := idx.entries[placeID]; ok {
		delete(e.npcs, ref)
		delete(e.actors, ref)
	}
}

// NPCsIn returns the refs of every NPC indexed at placeID.
func (idx *Index) NPCsIn(placeID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[placeID]
	if !ok {
		return nil
	}
	return keys(e.npcs)
}

// ActorsIn returns the refs of every actor indexed at placeID.
func (idx *Index) ActorsIn(placeID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[placeID]
	if !ok {
		return nil
	}
	return keys(e.actors)
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
