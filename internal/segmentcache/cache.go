// Package segmentcache slices a staged full render into per-segment,
// stage-tagged output and recombines that output into the payload a client
// would see right after navigating.
package segmentcache

import (
	"slices"
	"sync"
	"time"

	"github.com/specialistvlad/stagecheck/internal/invariant"
	"github.com/specialistvlad/stagecheck/internal/segment"
	"github.com/specialistvlad/stagecheck/internal/stage"
)

// Item is the cached output of one segment. It is written only by the task
// rendering that segment and read-only afterwards.
type Item struct {
	Chunks stage.Chunks

	debugMu sync.Mutex
	debug   [][]byte
}

// WriteChunk appends to the item's debug side channel.
func (i *Item) WriteChunk(chunk []byte) error {
	i.debugMu.Lock()
	defer i.debugMu.Unlock()
	i.debug = append(i.debug, chunk)
	return nil
}

// DebugChunks returns the debug side channel.
func (i *Item) DebugChunks() [][]byte {
	i.debugMu.Lock()
	defer i.debugMu.Unlock()
	return slices.Clip(i.debug)
}

// Cache maps segment paths to their output.
type Cache struct {
	mu    sync.RWMutex
	items map[segment.Path]*Item
}

func New() *Cache {
	return &Cache{items: make(map[segment.Path]*Item)}
}

// Put creates the entry for path. Each path has exactly one writer, so a
// second Put for the same path is an invariant violation.
func (c *Cache) Put(path segment.Path) (*Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[path]; exists {
		return nil, invariant.Errorf("segment %s was collected twice", path)
	}
	item := &Item{}
	c.items[path] = item
	return item, nil
}

// Get returns the entry for path.
func (c *Cache) Get(path segment.Path) (*Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[path]
	return item, ok
}

// Paths returns every cached path, sorted.
func (c *Cache) Paths() []segment.Path {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]segment.Path, 0, len(c.items))
	for p := range c.items {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Len returns the number of cached segments.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// StageEndTimes records when the full render closed its Static and Runtime
// stages. Debug info recorded after a stage closed is not part of that stage.
type StageEndTimes struct {
	Static  time.Time
	Runtime time.Time
}

// EndTimesOf reads the end times from a finished render attempt.
func EndTimesOf(c *stage.Controller) StageEndTimes {
	return StageEndTimes{Static: c.StaticStageEndTime(), Runtime: c.RuntimeStageEndTime()}
}

// For returns the cut-off for output of stage s. Dynamic output has none.
func (e StageEndTimes) For(s stage.Stage) time.Time {
	switch s {
	case stage.Static:
		return e.Static
	case stage.Runtime:
		return e.Runtime
	case stage.Before, stage.Dynamic, stage.Abandoned:
		return time.Time{}
	default:
		return time.Time{}
	}
}

// StageSet is a set of stages.
type StageSet uint8

func (s *StageSet) Add(st stage.Stage) {
	*s |= 1 << st
}

func (s StageSet) Has(st stage.Stage) bool {
	return s&(1<<st) != 0
}
