package bus

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// randomSuffix returns a 6-character base32 string for id uniqueness.
func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is effectively unrecoverable; fall back to a
		// time-derived value rather than panicking mid-pipeline.
		return strings.ToUpper(strconv.FormatInt(time.Now().UnixNano(), 32))[:6]
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	if len(enc) > 6 {
		enc = enc[:6]
	}
	return enc
}

// timestampLayout is colon-free so the envelope id's three `:`-separated
// segments stay unambiguous — time.RFC3339Nano's time-of-day component
// itself contains colons, which would break ParseIndex's split.
const timestampLayout = "20060102T150405.000000000Z"

// NextID builds an envelope id of the shape `<timestamp>:<6-digit index>:<6-char base32>`
// from the log's current head index. headIndex is the index parsed from the
// log's most recent entry; callers pass 0 when the log is empty.
func NextID(headIndex int) string {
	next := headIndex + 1
	return fmt.Sprintf("%s:%06d:%s",
		time.Now().UTC().Format(timestampLayout),
		next,
		randomSuffix(),
	)
}

// ParseIndex extracts the 6-digit index segment from an envelope id. If id
// does not match the canonical shape, ParseIndex falls back to returning
// ok=false so the caller can fall back to len+1 per C1's allocation rule.
func ParseIndex(id string) (index int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// AllocateIndex computes the next index for a new id given the head entry's
// id in a log (newest-first order). If the head id cannot be parsed, it
// falls back to entryCount+1, per C1.
func AllocateIndex(headID string, entryCount int) int {
	if idx, ok := ParseIndex(headID); ok {
		return idx + 1
	}
	return entryCount + 1
}
