package stage

import (
	"sync"

	"github.com/specialistvlad/stagecheck/internal/invariant"
)

// Chunks holds stage-tagged output. The lists are cumulative: a chunk
// produced during Static is part of all three, one produced during Runtime is
// part of Runtime and Dynamic. Each list is append-only.
type Chunks struct {
	mu      sync.Mutex
	static  [][]byte
	runtime [][]byte
	dynamic [][]byte
}

// Append records chunk as produced during stage s.
func (c *Chunks) Append(s Stage, chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch s {
	case Static:
		c.static = append(c.static, chunk)
		c.runtime = append(c.runtime, chunk)
		c.dynamic = append(c.dynamic, chunk)
	case Runtime:
		c.runtime = append(c.runtime, chunk)
		c.dynamic = append(c.dynamic, chunk)
	case Dynamic:
		c.dynamic = append(c.dynamic, chunk)
	case Before, Abandoned:
		return invariant.Errorf("chunk produced in the %s stage", s)
	default:
		return invariant.Errorf("invalid render stage %d", uint8(s))
	}
	return nil
}

// ForStage returns the chunks available once stage s has been reached.
func (c *Chunks) ForStage(s Stage) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch s {
	case Static:
		return c.static[:len(c.static):len(c.static)], nil
	case Runtime:
		return c.runtime[:len(c.runtime):len(c.runtime)], nil
	case Dynamic:
		return c.dynamic[:len(c.dynamic):len(c.dynamic)], nil
	case Before, Abandoned:
		return nil, invariant.Errorf("no chunks exist for the %s stage", s)
	default:
		return nil, invariant.Errorf("invalid render stage %d", uint8(s))
	}
}

// All returns every chunk in production order.
func (c *Chunks) All() [][]byte {
	all, _ := c.ForStage(Dynamic)
	return all
}

// Counts returns the number of chunks available at each stage.
func (c *Chunks) Counts() (static, runtime, dynamic int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.static), len(c.runtime), len(c.dynamic)
}
