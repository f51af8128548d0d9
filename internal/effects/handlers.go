package effects

import (
	"context"
	"fmt"

	"github.com/duskward/narrator/internal/refs"
	"github.com/duskward/narrator/internal/tags"
	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

// Dispatch table keys, the SYSTEM.* verbs per §4.8.
const (
	VerbApplyDamage     = "SYSTEM.APPLY_DAMAGE"
	VerbApplyHeal       = "SYSTEM.APPLY_HEAL"
	VerbApplyTag        = "SYSTEM.APPLY_TAG"
	VerbRemoveTag       = "SYSTEM.REMOVE_TAG"
	VerbAdjustInventory = "SYSTEM.ADJUST_INVENTORY"
	VerbAdjustResource  = "SYSTEM.ADJUST_RESOURCE"
	VerbAdjustStat      = "SYSTEM.ADJUST_STAT"
	VerbSetAwareness    = "SYSTEM.SET_AWARENESS"
	VerbAdvanceTime     = "SYSTEM.ADVANCE_TIME"
	VerbMoveEntity      = "SYSTEM.MOVE_ENTITY"
	VerbSetOccupancy    = "SYSTEM.SET_OCCUPANCY"
)

// toolRequiredVerbs lists the verbs whose registry entry mandates a tool=
// argument. Missing it yields E_MISSING_TOOL rather than running unarmed.
var toolRequiredVerbs = map[string]bool{
	VerbApplyDamage: true,
}

// ErrMissingTool is returned when a tool-required verb has no tool= argument.
var ErrMissingTool = fmt.Errorf("effects: E_MISSING_TOOL")

// Handler mutates world state for one resolved command. It must be atomic:
// load the entity, mutate it, save it, and return any error without partial
// side effects on failure.
type Handler func(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error

// Deps bundles the storage the handler table needs.
type Deps struct {
	Actors   *world.Store
	NPCs     *world.Store
	Items    *world.Store
	Places   *world.PlaceStore
	GameTime *world.GameTimeStore

	// Tags resolves a tag's MaxStacks so handleApplyTag can enforce it. May
	// be nil, in which case stacks are never clamped.
	Tags *tags.Registry
}

func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		VerbApplyDamage:     handleApplyDamage,
		VerbApplyHeal:       handleApplyHeal,
		VerbApplyTag:        handleApplyTag,
		VerbRemoveTag:       handleRemoveTag,
		VerbAdjustInventory: handleAdjustInventory,
		VerbAdjustResource:  handleAdjustResource,
		VerbAdjustStat:      handleAdjustStat,
		VerbSetAwareness:    handleSetAwareness,
		VerbAdvanceTime:     handleAdvanceTime,
		VerbMoveEntity:      handleMoveEntity,
		VerbSetOccupancy:    handleSetOccupancy,
	}
}

// entityStoreFor resolves which store owns ref's target, based on its
// resolved ref type.
func entityStoreFor(deps *Deps, t refs.RefType) *world.Store {
	switch t {
	case refs.TypeActor:
		return deps.Actors
	case refs.TypeNPC:
		return deps.NPCs
	case refs.TypeItem:
		return deps.Items
	default:
		return nil
	}
}

func targetEntity(ctx context.Context, deps *Deps, resolved map[string]refs.Resolved, cmd Command, key string) (*world.Store, world.Entity, error) {
	raw, ok := cmd.Args[key]
	if !ok {
		return nil, world.Entity{}, fmt.Errorf("effects: %s missing %q argument", cmd.Verb, key)
	}
	ref, ok := raw.(string)
	if !ok {
		return nil, world.Entity{}, fmt.Errorf("effects: %s argument %q is not a ref", cmd.Verb, key)
	}
	r, ok := resolved[ref]
	if !ok {
		return nil, world.Entity{}, fmt.Errorf("effects: %s: ref %q was not resolved", cmd.Verb, ref)
	}
	store := entityStoreFor(deps, r.Type)
	if store == nil {
		return nil, world.Entity{}, fmt.Errorf("effects: %s: ref %q has no entity store", cmd.Verb, ref)
	}
	e, err := store.Get(ctx, r.ID)
	if err != nil {
		return nil, world.Entity{}, fmt.Errorf("effects: %s: load %q: %w", cmd.Verb, r.ID, err)
	}
	return store, e, nil
}

func requireTool(cmd Command) error {
	if !toolRequiredVerbs[cmd.Verb] {
		return nil
	}
	if _, ok := cmd.Args["tool"]; !ok {
		return ErrMissingTool
	}
	return nil
}

func argFloat(cmd Command, key string) (float64, bool) {
	v, ok := cmd.Args[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func argString(cmd Command, key string) (string, bool) {
	v, ok := cmd.Args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func handleApplyDamage(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	if err := requireTool(cmd); err != nil {
		return err
	}
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	amount, ok := argFloat(cmd, "amount")
	if !ok {
		return fmt.Errorf("effects: %s missing numeric amount", cmd.Verb)
	}
	resourceName, _ := argString(cmd, "resource")
	if resourceName == "" {
		resourceName = "health"
	}
	res := e.Resources[resourceName]
	res.Current -= int(amount)
	if res.Current < 0 {
		res.Current = 0
	}
	if e.Resources == nil {
		e.Resources = make(map[string]world.Resource)
	}
	e.Resources[resourceName] = res
	return store.Update(ctx, e)
}

func handleApplyHeal(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	amount, ok := argFloat(cmd, "amount")
	if !ok {
		return fmt.Errorf("effects: %s missing numeric amount", cmd.Verb)
	}
	resourceName, _ := argString(cmd, "resource")
	if resourceName == "" {
		resourceName = "health"
	}
	res := e.Resources[resourceName]
	res.Current += int(amount)
	if res.Max > 0 && res.Current > res.Max {
		res.Current = res.Max
	}
	if e.Resources == nil {
		e.Resources = make(map[string]world.Resource)
	}
	e.Resources[resourceName] = res
	return store.Update(ctx, e)
}

func handleApplyTag(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	name, ok := argString(cmd, "name")
	if !ok {
		return fmt.Errorf("effects: %s missing name", cmd.Verb)
	}
	stacks, _ := argFloat(cmd, "stacks")
	if stacks == 0 {
		stacks = 1
	}
	value, _ := argFloat(cmd, "value")
	source, _ := argString(cmd, "source")

	maxStacks := 0
	if deps.Tags != nil {
		if rule, err := deps.Tags.Get(name); err == nil {
			maxStacks = rule.MaxStacks
		}
	}

	for i, t := range e.Tags {
		if t.Name == name {
			e.Tags[i].Stacks += int(stacks)
			if maxStacks > 0 && e.Tags[i].Stacks > maxStacks {
				e.Tags[i].Stacks = maxStacks
			}
			return store.Update(ctx, e)
		}
	}
	newStacks := int(stacks)
	if maxStacks > 0 && newStacks > maxStacks {
		newStacks = maxStacks
	}
	e.Tags = append(e.Tags, world.TagInstance{Name: name, Stacks: newStacks, Value: value, Source: source})
	return store.Update(ctx, e)
}

func handleRemoveTag(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	name, ok := argString(cmd, "name")
	if !ok {
		return fmt.Errorf("effects: %s missing name", cmd.Verb)
	}
	out := e.Tags[:0]
	for _, t := range e.Tags {
		if t.Name != name {
			out = append(out, t)
		}
	}
	e.Tags = out
	return store.Update(ctx, e)
}

func handleAdjustInventory(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	slot, _ := argString(cmd, "slot")
	itemID, _ := argString(cmd, "item")
	remove, _ := cmd.Args["remove"].(bool)

	if remove {
		out := e.Inventory[:0]
		for _, s := range e.Inventory {
			if s.Slot != slot {
				out = append(out, s)
			}
		}
		e.Inventory = out
	} else {
		e.Inventory = append(e.Inventory, world.InventorySlot{Slot: slot, ItemID: itemID})
	}
	return store.Update(ctx, e)
}

func handleAdjustResource(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	name, ok := argString(cmd, "name")
	if !ok {
		return fmt.Errorf("effects: %s missing name", cmd.Verb)
	}
	delta, _ := argFloat(cmd, "delta")
	if e.Resources == nil {
		e.Resources = make(map[string]world.Resource)
	}
	res := e.Resources[name]
	res.Current += int(delta)
	if res.Max > 0 && res.Current > res.Max {
		res.Current = res.Max
	}
	if res.Current < 0 {
		res.Current = 0
	}
	e.Resources[name] = res
	return store.Update(ctx, e)
}

func handleAdjustStat(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	name, ok := argString(cmd, "name")
	if !ok {
		return fmt.Errorf("effects: %s missing name", cmd.Verb)
	}
	delta, _ := argFloat(cmd, "delta")
	if e.Attributes == nil {
		e.Attributes = make(map[string]int)
	}
	e.Attributes[name] += int(delta)
	return store.Update(ctx, e)
}

func handleSetAwareness(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	of, ok := argString(cmd, "of")
	if !ok {
		return fmt.Errorf("effects: %s missing of", cmd.Verb)
	}
	for _, a := range e.Awareness {
		if a == of {
			return store.Update(ctx, e)
		}
	}
	e.Awareness = append(e.Awareness, of)
	return store.Update(ctx, e)
}

func handleAdvanceTime(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	minutes, ok := argFloat(cmd, "minutes")
	if !ok {
		return fmt.Errorf("effects: %s missing numeric minutes", cmd.Verb)
	}
	if deps.GameTime == nil {
		return fmt.Errorf("effects: %s: no game time store configured", cmd.Verb)
	}
	_, err := deps.GameTime.Advance(int64(minutes))
	return err
}

func handleMoveEntity(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	store, e, err := targetEntity(ctx, deps, resolved, cmd, "target")
	if err != nil {
		return err
	}
	x, xok := argFloat(cmd, "x")
	y, yok := argFloat(cmd, "y")
	if !xok || !yok {
		return fmt.Errorf("effects: %s missing x/y", cmd.Verb)
	}
	e.Location.Tile.X = int(x)
	e.Location.Tile.Y = int(y)
	if placeID, ok := argString(cmd, "place"); ok {
		e.Location.PlaceID = placeID
	}
	return store.Update(ctx, e)
}

func handleSetOccupancy(ctx context.Context, deps *Deps, cmd Command, resolved map[string]refs.Resolved) error {
	placeID, ok := argString(cmd, "place")
	if !ok {
		return fmt.Errorf("effects: %s missing place", cmd.Verb)
	}
	if deps.Places == nil {
		return fmt.Errorf("effects: %s: no place store configured", cmd.Verb)
	}
	place, err := deps.Places.Get(placeID)
	if err != nil {
		return fmt.Errorf("effects: %s: load place %q: %w", cmd.Verb, placeID, err)
	}

	ref, ok := argString(cmd, "ref")
	if !ok {
		return fmt.Errorf("effects: %s missing ref", cmd.Verb)
	}
	x, xok := argFloat(cmd, "x")
	y, yok := argFloat(cmd, "y")
	if !xok || !yok {
		return fmt.Errorf("effects: %s missing x/y", cmd.Verb)
	}
	stacking, _ := cmd.Args["stacking"].(bool)

	r, ok := resolved[ref]
	if !ok {
		return fmt.Errorf("effects: %s: ref %q was not resolved", cmd.Verb, ref)
	}
	occ := world.Occupant{Ref: ref, Tile: types.TilePosition{X: int(x), Y: int(y)}, Stacking: stacking}

	switch r.Type {
	case refs.TypeNPC:
		place.NPCs = upsertOccupant(place.NPCs, occ)
	case refs.TypeActor:
		place.Actors = upsertOccupant(place.Actors, occ)
	default:
		place.Items = upsertOccupant(place.Items, occ)
	}
	return deps.Places.Save(place)
}

func upsertOccupant(occs []world.Occupant, occ world.Occupant) []world.Occupant {
	for i, o := range occs {
		if o.Ref == occ.Ref {
			occs[i] = occ
			return occs
		}
	}
	return append(occs, occ)
}
