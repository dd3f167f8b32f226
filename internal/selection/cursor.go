package selection

import (
	"encoding/json"
	"slices"
)

// Cursor is the persisted selection state of one binding.
//
// RRIndex is the round-robin position. Queue holds the current shuffle
// permutation and Pos how many of its entries were already consumed; an empty
// Queue (or Pos past its end) means the next shuffle pick reshuffles.
type Cursor struct {
	RRIndex int
	Queue   []string
	Pos     int
}

// Clone returns a deep copy, safe to hand to a persister.
func (c Cursor) Clone() Cursor {
	c.Queue = slices.Clone(c.Queue)
	return c
}

// Remaining returns the shuffle entries not consumed yet.
func (c Cursor) Remaining() []string {
	if c.Pos < 0 || c.Pos >= len(c.Queue) {
		return nil
	}
	return c.Queue[c.Pos:]
}

type cursorJSON struct {
	RRIndex       int      `json:"saved_rr_index"`
	ShuffledFiles []string `json:"saved_shuffled_files"`
	ShuffledIndex int      `json:"saved_shuffled_index"`
}

// MarshalJSON uses the persisted field names of the preset format.
func (c *Cursor) MarshalJSON() ([]byte, error) {
	queue := c.Queue
	if queue == nil {
		queue = []string{}
	}
	return json.Marshal(cursorJSON{
		RRIndex:       c.RRIndex,
		ShuffledFiles: queue,
		ShuffledIndex: c.Pos,
	})
}

func (c *Cursor) UnmarshalJSON(data []byte) error {
	var raw cursorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.RRIndex = raw.RRIndex
	c.Queue = raw.ShuffledFiles
	c.Pos = raw.ShuffledIndex
	return nil
}
