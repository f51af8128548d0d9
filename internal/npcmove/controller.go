package npcmove

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/types"
)

// Default scheduling parameters, per §4.11.
const (
	DefaultTickRate            = 250 * time.Millisecond // 4 Hz
	DefaultBatchSize           = 5
	DefaultMaxReassessInterval = 10 * time.Second
	DefaultStuckThreshold      = 3
	DefaultBlockedThreshold    = 3 * time.Second
	DefaultMaxPathDistance     = 12
)

// Goal is an NPC's desired destination within its current place.
type Goal struct {
	Destination types.TilePosition
	ExpiresAt   time.Time // zero means it never expires
}

// Expired reports whether the goal has passed its expiry as of now.
func (g *Goal) Expired(now time.Time) bool {
	return g != nil && !g.ExpiresAt.IsZero() && now.After(g.ExpiresAt)
}

// NPCState is the controller's per-NPC bookkeeping.
type NPCState struct {
	Ref      string
	PlaceID  string
	Position types.TilePosition
	Facing   Facing

	Goal    *Goal
	Path    []types.TilePosition // remaining tiles to walk, not including Position
	history MovementHistory

	BlockedSince time.Time
	StuckCount   int
	LastReassess time.Time
}

// isMoving reports whether the NPC currently has a path to walk.
func (s *NPCState) isMoving() bool { return len(s.Path) > 0 }

// Deps are the controller's injected side effects, kept as plain function
// fields so the scheduler stays free of direct I/O and is testable without
// a real world store.
type Deps struct {
	// LoadPlace returns the current tile-grid state for a place id.
	LoadPlace func(placeID string) (world.Place, error)

	// NextGoal is consulted when an NPC needs a fresh goal (no current goal,
	// expired, or exhausted); it returns ok=false to leave the NPC idle.
	NextGoal func(npc NPCState) (Goal, bool)

	// Emit delivers one command to the external rendering process.
	Emit func(Command)

	// Now returns the current time; overridable for deterministic tests.
	Now func() time.Time

	// Jitter returns a random delay in [0, 5s) added to the reassessment
	// interval, per §4.11.
	Jitter func() time.Duration
}

// Controller is the fixed-rate NPC movement scheduler (C11). It is the sole
// authority over NPC position and facing; the renderer only executes the
// commands it emits.
type Controller struct {
	deps Deps

	batchSize       int
	maxReassess     time.Duration
	stuckThreshold  int
	blockedThreshold time.Duration
	maxPathDistance int

	presence *PresenceStore

	mu     sync.Mutex
	npcs   map[string]*NPCState
	order  []string
	cursor int
}

// Config tunes the controller's scheduling thresholds; zero fields fall
// back to the defaults above.
type Config struct {
	BatchSize           int
	MaxReassessInterval time.Duration
	StuckThreshold      int
	BlockedThreshold    time.Duration
	MaxPathDistance     int
}

// New returns a [Controller] wired to deps and presence, with cfg's
// thresholds (or their defaults).
func New(deps Deps, presence *PresenceStore, cfg Config) *Controller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxReassessInterval <= 0 {
		cfg.MaxReassessInterval = DefaultMaxReassessInterval
	}
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = DefaultStuckThreshold
	}
	if cfg.BlockedThreshold <= 0 {
		cfg.BlockedThreshold = DefaultBlockedThreshold
	}
	if cfg.MaxPathDistance <= 0 {
		cfg.MaxPathDistance = DefaultMaxPathDistance
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Jitter == nil {
		deps.Jitter = func() time.Duration { return 0 }
	}
	return &Controller{
		deps:             deps,
		batchSize:        cfg.BatchSize,
		maxReassess:      cfg.MaxReassessInterval,
		stuckThreshold:   cfg.StuckThreshold,
		blockedThreshold: cfg.BlockedThreshold,
		maxPathDistance:  cfg.MaxPathDistance,
		presence:         presence,
		npcs:             make(map[string]*NPCState),
	}
}

// Track begins managing an NPC at its current position.
func (c *Controller) Track(ref, placeID string, pos types.TilePosition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.npcs[ref]; exists {
		return
	}
	c.npcs[ref] = &NPCState{Ref: ref, PlaceID: placeID, Position: pos}
	c.order = append(c.order, ref)
}

// Untrack stops managing an NPC.
func (c *Controller) Untrack(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.npcs, ref)
	for i, r := range c.order {
		if r == ref {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Run drives Tick on the controller's fixed rate until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, rate time.Duration) {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				slog.Warn("npcmove: tick failed", "err", err)
			}
		}
	}
}

// Tick advances every currently-moving NPC by one tile step, then selects up
// to the configured batch size of stale NPCs for full reassessment.
func (c *Controller) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.deps.Now()
	nowMS := now.UnixMilli()

	for _, ref := range c.order {
		npc := c.npcs[ref]
		if _, busy := c.presence.Get(ref, nowMS); busy {
			c.deps.Emit(StatusCommand(ref, "busy"))
			c.deps.Emit(Stop(ref))
			continue
		}
		c.advance(npc, now)
	}

	stale := c.selectStale(now)
	for _, npc := range stale {
		c.reassess(npc, now)
	}
	return nil
}

// advance steps npc one tile along its current path, if any, updating
// facing and blocked/stuck bookkeeping.
func (c *Controller) advance(npc *NPCState, now time.Time) {
	if !npc.isMoving() {
		return
	}

	place, err := c.deps.LoadPlace(npc.PlaceID)
	if err != nil {
		return
	}

	next := npc.Path[0]
	if !place.IsWalkable(next, npc.Ref) {
		c.markBlocked(npc, now)
		return
	}

	dx, dy := next.X-npc.Position.X, next.Y-npc.Position.Y
	npc.Position = next
	npc.Path = npc.Path[1:]
	npc.history.Record(next)
	npc.BlockedSince = time.Time{}
	npc.StuckCount = 0

	if facing, ok := FacingFromDelta(dx, dy); ok {
		npc.Facing = facing
	}
	c.deps.Emit(Move(npc.Ref, npc.Position, npc.Facing))

	if len(npc.Path) == 0 {
		c.deps.Emit(StatusCommand(npc.Ref, "idle"))
	}
}

// markBlocked records a blocked tick, escalating to a stuck count once the
// block has persisted, per §4.11's "blocked for >3s" staleness trigger.
func (c *Controller) markBlocked(npc *NPCState, now time.Time) {
	if npc.BlockedSince.IsZero() {
		npc.BlockedSince = now
		return
	}
	if now.Sub(npc.BlockedSince) > c.blockedThreshold {
		npc.StuckCount++
	}
}

// needsReassessment reports whether npc's goal is stale, per §4.11: no
// goal, an expired goal, blocked beyond threshold, a stuck count at or
// above threshold, or the max reassessment interval (plus jitter) elapsed.
func (c *Controller) needsReassessment(npc *NPCState, now time.Time) bool {
	if npc.Goal == nil {
		return true
	}
	if npc.Goal.Expired(now) {
		return true
	}
	if !npc.BlockedSince.IsZero() && now.Sub(npc.BlockedSince) > c.blockedThreshold {
		return true
	}
	if npc.StuckCount >= c.stuckThreshold {
		return true
	}
	deadline := npc.LastReassess.Add(c.maxReassess + c.deps.Jitter())
	return !npc.LastReassess.IsZero() && now.After(deadline)
}

// selectStale returns up to the batch size of managed NPCs needing
// reassessment, round-robin across ticks so no NPC starves. NPCs in
// conversation presence are skipped.
func (c *Controller) selectStale(now time.Time) []*NPCState {
	n := len(c.order)
	if n == 0 {
		return nil
	}
	var out []*NPCState
	for i := 0; i < n && len(out) < c.batchSize; i++ {
		idx := (c.cursor + i) % n
		npc := c.npcs[c.order[idx]]
		if _, busy := c.presence.Get(npc.Ref, now.UnixMilli()); busy {
			continue
		}
		if c.needsReassessment(npc, now) {
			out = append(out, npc)
		}
	}
	c.cursor = (c.cursor + 1) % n
	return out
}

// reassess assigns npc a fresh goal (if one is available) and recomputes its
// path via BFS, falling back to [FindPathToNearby] when the destination
// itself is blocked.
func (c *Controller) reassess(npc *NPCState, now time.Time) {
	npc.LastReassess = now
	npc.BlockedSince = time.Time{}
	npc.StuckCount = 0

	goal, ok := c.deps.NextGoal(*npc)
	if !ok {
		npc.Goal = nil
		npc.Path = nil
		c.deps.Emit(Stop(npc.Ref))
		return
	}
	npc.Goal = &goal

	place, err := c.deps.LoadPlace(npc.PlaceID)
	if err != nil {
		return
	}

	path, err := FindPathToNearby(place, npc.Position, goal.Destination, c.maxPathDistance, npc.Ref)
	if err != nil {
		c.deps.Emit(StatusCommand(npc.Ref, "blocked"))
		return
	}
	// path[0] is the current tile; only the remaining steps are walked.
	if len(path) > 0 {
		path = path[1:]
	}
	npc.Path = path
	c.deps.Emit(Wander(npc.Ref, path))
}
