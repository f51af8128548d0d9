// Package wire carries C11's typed NPC movement commands across a
// websocket connection to the external rendering process. The renderer is
// a passive executor; this package only pushes, it never interprets.
package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"github.com/duskward/narrator/internal/npcmove"
)

// wireCommand is the on-the-wire JSON shape for an [npcmove.Command].
type wireCommand struct {
	Kind   npcmove.CommandKind `json:"kind"`
	NPCRef string              `json:"npc_ref"`
	Tile   *wireTile           `json:"tile,omitempty"`
	Facing npcmove.Facing      `json:"facing,omitempty"`
	Status string              `json:"status,omitempty"`
	Path   []wireTile          `json:"path,omitempty"`
}

type wireTile struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func encode(cmd npcmove.Command) wireCommand {
	w := wireCommand{Kind: cmd.Kind, NPCRef: cmd.NPCRef, Facing: cmd.Facing, Status: cmd.Status}
	if cmd.Tile.X != 0 || cmd.Tile.Y != 0 {
		w.Tile = &wireTile{X: cmd.Tile.X, Y: cmd.Tile.Y}
	}
	if len(cmd.Path) > 0 {
		w.Path = make([]wireTile, len(cmd.Path))
		for i, p := range cmd.Path {
			w.Path[i] = wireTile{X: p.X, Y: p.Y}
		}
	}
	return w
}

// ErrClosed is returned by [PushClient.Send] once the client has been closed.
var ErrClosed = errors.New("wire: push client is closed")

// PushClient holds a single outbound websocket connection to the rendering
// process and serializes [npcmove.Command] values onto it. One PushClient
// serves one renderer connection. cmd/narrator does not use it: there the
// NPC movement controller's emit callback calls [Hub.Broadcast].
type PushClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// Connect dials the rendering process at url and returns a ready
// [PushClient]. The caller owns the returned client and must call Close.
func Connect(ctx context.Context, url string) (*PushClient, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s: %w", url, err)
	}
	return &PushClient{conn: conn}, nil
}

// Send encodes cmd as JSON and writes it as a single text message.
func (c *PushClient) Send(ctx context.Context, cmd npcmove.Command) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	payload, err := json.Marshal(encode(cmd))
	if err != nil {
		return fmt.Errorf("wire: encode command: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("wire: write command: %w", err)
	}
	return nil
}

// Close terminates the connection with a normal closure. Safe to call more
// than once.
func (c *PushClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close(websocket.StatusNormalClosure, "push client closed")
}
