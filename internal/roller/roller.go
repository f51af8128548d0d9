package roller

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/duskward/narrator/internal/bus"
)

// Status is the on-disk roller status file the UI polls to drive the roll
// button: spinner state, the label to show, and which roll (if any) is
// currently pending player input.
type Status struct {
	SchemaVersion  int    `json:"schema_version"`
	Spinner        bool   `json:"spinner"`
	LastPlayerRoll string `json:"last_player_roll"`
	DiceLabel      string `json:"dice_label"`
	Disabled       bool   `json:"disabled"`
	RollID         string `json:"roll_id"`
	UpdatedAt      string `json:"updated_at"`
}

const statusSchemaVersion = 1

// pendingRoll is a `roll_request_*` awaiting player input via `roll_input_*`.
type pendingRoll struct {
	RollID     string
	Expression string
	DiceLabel  string
	EnvelopeID string
}

// Roller correlates roll_request_*/roll_input_* envelopes against a single
// active player roll, and emits roll_result_1 envelopes.
type Roller struct {
	statusPath string
	outbox     *bus.Outbox

	mu      sync.Mutex
	pending []pendingRoll // queue of player rolls awaiting input; index 0 is active
}

// New returns a [Roller] backed by statusPath and outbox.
func New(statusPath string, outbox *bus.Outbox) *Roller {
	return &Roller{statusPath: statusPath, outbox: outbox}
}

// HandleRequest processes a roll_request_* envelope. If rolledByPlayer is
// true, the roll is queued and surfaced via the status file; otherwise it is
// evaluated immediately and a roll_result_1 envelope is returned for the
// caller to append to the outbox.
func (r *Roller) HandleRequest(ctx context.Context, env bus.MessageEnvelope, expression string, rolledByPlayer bool, diceLabel string) (*bus.MessageEnvelope, error) {
	if !rolledByPlayer {
		result, err := evaluate(expression)
		if err != nil {
			return nil, err
		}
		out := newResultEnvelope(env, result)
		return &out, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wasEmpty := len(r.pending) == 0
	r.pending = append(r.pending, pendingRoll{
		RollID:     env.ID,
		Expression: expression,
		DiceLabel:  diceLabel,
		EnvelopeID: env.ID,
	})
	if wasEmpty {
		return nil, r.writeStatusLocked(Status{
			SchemaVersion: statusSchemaVersion,
			Spinner:       false,
			DiceLabel:     diceLabel,
			Disabled:      false,
			RollID:        env.ID,
			UpdatedAt:     nowRFC3339(),
		})
	}
	return nil, nil
}

// HandleInput processes a roll_input_* envelope: it matches the pending
// request by rollID, rolls it, emits roll_result_1, and advances the status
// to the next pending player roll (or disables the button if none remain).
func (r *Roller) HandleInput(ctx context.Context, env bus.MessageEnvelope, rollID string) (*bus.MessageEnvelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.pending {
		if p.RollID == rollID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("roller: no pending roll with id %q", rollID)
	}
	match := r.pending[idx]
	r.pending = append(r.pending[:idx], r.pending[idx+1:]...)

	result, err := evaluate(match.Expression)
	if err != nil {
		return nil, err
	}
	out := newResultEnvelope(env, result)

	if len(r.pending) > 0 {
		next := r.pending[0]
		if err := r.writeStatusLocked(Status{
			SchemaVersion: statusSchemaVersion,
			Spinner:       false,
			DiceLabel:     next.DiceLabel,
			Disabled:      false,
			RollID:        next.RollID,
			UpdatedAt:     nowRFC3339(),
		}); err != nil {
			return &out, err
		}
	} else {
		if err := r.writeStatusLocked(Status{
			SchemaVersion: statusSchemaVersion,
			Disabled:      true,
			UpdatedAt:     nowRFC3339(),
		}); err != nil {
			return &out, err
		}
	}
	return &out, nil
}

type rollResult struct {
	Expression string
	Rolls      []int
	Total      int
}

func evaluate(expression string) (rollResult, error) {
	expr, err := ParseExpression(expression)
	if err != nil {
		return rollResult{}, err
	}
	rolls, total := expr.Roll()
	return rollResult{Expression: expression, Rolls: rolls, Total: total}, nil
}

func newResultEnvelope(source bus.MessageEnvelope, result rollResult) bus.MessageEnvelope {
	sessionID, _ := source.SessionID()
	out := bus.New(bus.NextID(0), sessionID, "roller", "")
	out.Stage = "roll_result_1"
	out.Status = bus.StatusSent
	out.CorrelationID = source.ID
	out.Meta["expression"] = result.Expression
	out.Meta["rolls"] = result.Rolls
	out.Meta["total"] = result.Total
	return out
}

func (r *Roller) writeStatusLocked(s Status) error {
	dir := filepath.Dir(r.statusPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("roller: mkdir %q: %w", dir, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("roller: marshal status: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".roller_status-*.tmp")
	if err != nil {
		return fmt.Errorf("roller: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("roller: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, r.statusPath)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
