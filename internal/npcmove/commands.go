package npcmove

import "github.com/duskward/narrator/pkg/types"

// CommandKind identifies which typed command a [Command] carries. The
// controller is the sole authority over these; the external renderer only
// executes them.
type CommandKind string

// Recognised [CommandKind] values.
const (
	CommandNPCStop    CommandKind = "NPC_STOP"
	CommandNPCMove    CommandKind = "NPC_MOVE"
	CommandNPCWander  CommandKind = "NPC_WANDER"
	CommandNPCFace    CommandKind = "NPC_FACE"
	CommandNPCPatrol  CommandKind = "NPC_PATROL"
	CommandNPCFlee    CommandKind = "NPC_FLEE"
	CommandNPCStatus  CommandKind = "NPC_STATUS"
	CommandUIHighlight CommandKind = "UI_HIGHLIGHT"
	CommandUITarget   CommandKind = "UI_TARGET"
)

// Command is a single typed instruction pushed to the rendering process.
type Command struct {
	Kind   CommandKind
	NPCRef string
	Tile   types.TilePosition
	Facing Facing
	Status string
	Path   []types.TilePosition
}

// Stop builds a [CommandNPCStop] for npcRef.
func Stop(npcRef string) Command {
	return Command{Kind: CommandNPCStop, NPCRef: npcRef}
}

// Move builds a [CommandNPCMove] stepping npcRef toward tile, facing it.
func Move(npcRef string, tile types.TilePosition, facing Facing) Command {
	return Command{Kind: CommandNPCMove, NPCRef: npcRef, Tile: tile, Facing: facing}
}

// Wander builds a [CommandNPCWander] for npcRef following path.
func Wander(npcRef string, path []types.TilePosition) Command {
	return Command{Kind: CommandNPCWander, NPCRef: npcRef, Path: path}
}

// Face builds a [CommandNPCFace] turning npcRef to face facing without
// moving.
func Face(npcRef string, facing Facing) Command {
	return Command{Kind: CommandNPCFace, NPCRef: npcRef, Facing: facing}
}

// Patrol builds a [CommandNPCPatrol] for npcRef following a looping path.
func Patrol(npcRef string, path []types.TilePosition) Command {
	return Command{Kind: CommandNPCPatrol, NPCRef: npcRef, Path: path}
}

// Flee builds a [CommandNPCFlee] routing npcRef away along path.
func Flee(npcRef string, path []types.TilePosition) Command {
	return Command{Kind: CommandNPCFlee, NPCRef: npcRef, Path: path}
}

// StatusCommand builds a [CommandNPCStatus] report for npcRef (e.g. "busy",
// "idle", "blocked").
func StatusCommand(npcRef, status string) Command {
	return Command{Kind: CommandNPCStatus, NPCRef: npcRef, Status: status}
}

// Highlight builds a [CommandUIHighlight] for npcRef's current tile.
func Highlight(npcRef string, tile types.TilePosition) Command {
	return Command{Kind: CommandUIHighlight, NPCRef: npcRef, Tile: tile}
}

// Target builds a [CommandUITarget] marking npcRef as a selectable target.
func Target(npcRef string, tile types.TilePosition) Command {
	return Command{Kind: CommandUITarget, NPCRef: npcRef, Tile: tile}
}
