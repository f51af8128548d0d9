// Package refs resolves the ref grammar used throughout effect expressions
// (actor/npc/tile/item refs) against live world state.
package refs

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/duskward/narrator/internal/world"
)

// RefType classifies a resolved ref.
type RefType string

// Recognised ref types, per §4.7.
const (
	TypeActor      RefType = "actor"
	TypeNPC        RefType = "npc"
	TypeWorldTile  RefType = "world_tile"
	TypeRegionTile RefType = "region_tile"
	TypeTile       RefType = "tile"
	TypeItem       RefType = "item"
)

// Resolved describes one ref's resolution outcome.
type Resolved struct {
	Ref           string
	ID            string
	Type          RefType
	Path          string
	Representative bool
	Owner         string
}

var (
	actorRe      = regexp.MustCompile(`^actor\.([^.]+)$`)
	npcRe        = regexp.MustCompile(`^npc\.([^.]+)$`)
	worldTileRe  = regexp.MustCompile(`^world_tile\.(-?\d+)\.(-?\d+)$`)
	regionTileRe = regexp.MustCompile(`^region_tile\.(-?\d+)\.(-?\d+)\.(-?\d+)\.(-?\d+)$`)
	tileRe       = regexp.MustCompile(`^tile\.(-?\d+)\.(-?\d+)\.(-?\d+)\.(-?\d+)\.(-?\d+)\.(-?\d+)$`)
	itemRe       = regexp.MustCompile(`item_(\d+)`)
)

// Stores bundles the lookups needed to resolve refs against live state.
type Stores struct {
	Actors *world.Store
	NPCs   *world.Store
	Items  *world.Store
	Places *world.PlaceStore
}

// Resolver resolves ref strings against a [Stores] bundle.
type Resolver struct {
	stores Stores
	// UseRepresentativeData downgrades missing entities from error to
	// warning, substituting a placeholder path.
	UseRepresentativeData bool
}

// New returns a [Resolver] over stores.
func New(stores Stores, useRepresentative bool) *Resolver {
	return &Resolver{stores: stores, UseRepresentativeData: useRepresentative}
}

// Result is the outcome of resolving a batch of refs: the resolved map plus
// any errors and warnings encountered.
type Result struct {
	Resolved map[string]Resolved
	Errors   []string
	Warnings []string
}

// ResolveAll resolves every ref in refsList, in strict mode unless the
// resolver was constructed with UseRepresentativeData set.
func (r *Resolver) ResolveAll(ctx context.Context, refsList []string) Result {
	out := Result{Resolved: make(map[string]Resolved, len(refsList))}
	for _, ref := range refsList {
		resolved, err := r.resolveOne(ctx, ref)
		if err != nil {
			if r.UseRepresentativeData {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v (using representative data)", ref, err))
				resolved.Representative = true
				resolved.Path = placeholderPath(ref)
				out.Resolved[ref] = resolved
				continue
			}
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", ref, err))
			continue
		}
		out.Resolved[ref] = resolved
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, ref string) (Resolved, error) {
	switch {
	case actorRe.MatchString(ref):
		m := actorRe.FindStringSubmatch(ref)
		return r.resolveEntity(ctx, ref, TypeActor, r.stores.Actors, m[1])

	case npcRe.MatchString(ref):
		m := npcRe.FindStringSubmatch(ref)
		return r.resolveEntity(ctx, ref, TypeNPC, r.stores.NPCs, m[1])

	case tileRe.MatchString(ref):
		return Resolved{Ref: ref, Type: TypeTile, Path: ref}, nil

	case regionTileRe.MatchString(ref):
		return Resolved{Ref: ref, Type: TypeRegionTile, Path: ref}, nil

	case worldTileRe.MatchString(ref):
		return Resolved{Ref: ref, Type: TypeWorldTile, Path: ref}, nil

	case itemRe.MatchString(ref):
		return r.resolveItem(ctx, ref)

	default:
		return Resolved{}, fmt.Errorf("refs: unrecognized ref syntax %q", ref)
	}
}

func (r *Resolver) resolveEntity(ctx context.Context, ref string, t RefType, store *world.Store, id string) (Resolved, error) {
	if store == nil {
		return Resolved{}, fmt.Errorf("refs: no store configured for %s refs", t)
	}
	e, err := store.Get(ctx, id)
	if err != nil {
		return Resolved{}, fmt.Errorf("refs: %s %q not found: %w", t, id, err)
	}
	return Resolved{Ref: ref, ID: e.ID, Type: t, Path: string(t) + "/" + e.ID}, nil
}

// resolveItem resolves an item_<n> ref. The owning actor/npc is inferred
// from the surrounding path segments (e.g. "actor.a1.inventory.item_3"); an
// item with no resolvable owner errors unless representative mode is on.
func (r *Resolver) resolveItem(ctx context.Context, ref string) (Resolved, error) {
	segments := strings.Split(ref, ".")
	itemIdx := -1
	for i, seg := range segments {
		if itemRe.MatchString(seg) {
			itemIdx = i
			break
		}
	}
	if itemIdx < 0 {
		return Resolved{}, fmt.Errorf("refs: malformed item ref %q", ref)
	}
	itemSeg := segments[itemIdx]

	var owner string
	if itemIdx >= 2 {
		ownerKind := segments[0]
		ownerID := segments[1]
		owner = ownerKind + "." + ownerID
	}
	if owner == "" {
		return Resolved{}, fmt.Errorf("refs: item ref %q has no resolvable owner", ref)
	}

	if r.stores.Items != nil {
		if e, err := r.stores.Items.Get(ctx, itemSeg); err == nil {
			return Resolved{Ref: ref, ID: e.ID, Type: TypeItem, Path: ref, Owner: owner}, nil
		}
	}
	return Resolved{}, fmt.Errorf("refs: item %q not found", itemSeg)
}

func placeholderPath(ref string) string {
	return "placeholder/" + strings.ReplaceAll(ref, ".", "/")
}
