package terrain

import (
	"sort"
	"sync"

	"github.com/pavletto/terrainer/hgt"
)

// TileCache is a byte-bounded cache of tiles keyed by ID. The limit applies
// to resident raster bytes only; placeholders weigh nothing and are never
// evicted. When an update pushes the total over the limit the cache drops
// data-bearing tiles in oldest-access order until it fits again.
//
// All operations are mutually exclusive behind one mutex, which the cached
// tiles share for their own accessors.
type TileCache struct {
	mu      sync.Mutex
	limit   int64 // max resident raster bytes; <= 0 means unbounded
	tiles   map[hgt.TileID]*Tile
	size    int64
	stamp   uint64
	onEvict func(*Tile) // called after the lock is released
}

// NewTileCache returns a cache bounded to limitBytes of raster data.
// A limit of zero or less means unbounded.
func NewTileCache(limitBytes int64) *TileCache {
	return &TileCache{
		limit: limitBytes,
		tiles: make(map[hgt.TileID]*Tile),
	}
}

// монотонная метка доступа; не wall clock, чтобы перевод часов не ломал
// порядок вытеснения
func (c *TileCache) nextStampLocked() uint64 {
	c.stamp++
	return c.stamp
}

// Get returns the cached tile or nil. A hit refreshes the eviction stamp.
func (c *TileCache) Get(id hgt.TileID) *Tile {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tiles[id]
	if t != nil {
		t.lastAccess = c.nextStampLocked()
	}
	return t
}

// PutOrUpdate inserts a tile or mutates the existing entry in place and
// returns the cached instance; for a known ID that is the same pointer
// handed out before. A non-valid status clears any resident raster.
// PutOrUpdate panics if status is StatusValid with a nil raster; that pair
// would break the raster-iff-valid invariant.
func (c *TileCache) PutOrUpdate(id hgt.TileID, r *hgt.Raster, status Status) *Tile {
	if status == StatusValid && r == nil {
		panic("terrain: valid tile requires a raster")
	}
	if status != StatusValid {
		r = nil
	}

	c.mu.Lock()
	t := c.tiles[id]
	if t == nil {
		t = &Tile{id: id, cache: c}
		c.tiles[id] = t
	}
	c.size -= t.sizeLocked()
	t.status = status
	t.raster = r
	c.size += t.sizeLocked()
	t.lastAccess = c.nextStampLocked()
	evicted := c.evictToLimitLocked()
	c.mu.Unlock()

	c.notifyEvicted(evicted)
	return t
}

// Remove detaches and returns the entry, nil when absent. The detached tile
// stays readable for holders of the pointer; the engine simply forgets it.
func (c *TileCache) Remove(id hgt.TileID) *Tile {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tiles[id]
	if t == nil {
		return nil
	}
	c.size -= t.sizeLocked()
	delete(c.tiles, id)
	return t
}

// ClearStatus removes every tile currently in the given status and returns
// how many went. Used to re-probe file-missing tiles once downloading gets
// enabled.
func (c *TileCache) ClearStatus(status Status) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, t := range c.tiles {
		if t.status == status {
			c.size -= t.sizeLocked()
			delete(c.tiles, id)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries, placeholders included.
func (c *TileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tiles)
}

// SizeBytes returns the resident raster bytes.
func (c *TileCache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Limit returns the configured byte limit.
func (c *TileCache) Limit() int64 { return c.limit }

// evictToLimitLocked drops data-bearing tiles, oldest access first, until
// the resident bytes fit the limit. Placeholders are never candidates. The
// newest insertion is itself evictable when it alone exceeds the limit.
func (c *TileCache) evictToLimitLocked() []*Tile {
	if c.limit <= 0 || c.size <= c.limit {
		return nil
	}
	resident := make([]*Tile, 0, len(c.tiles))
	for _, t := range c.tiles {
		if t.raster != nil {
			resident = append(resident, t)
		}
	}
	sort.Slice(resident, func(i, j int) bool {
		return resident[i].lastAccess < resident[j].lastAccess
	})
	var evicted []*Tile
	for _, t := range resident {
		if c.size <= c.limit {
			break
		}
		c.size -= t.sizeLocked()
		delete(c.tiles, t.id)
		evicted = append(evicted, t)
	}
	return evicted
}

func (c *TileCache) notifyEvicted(evicted []*Tile) {
	if c.onEvict == nil {
		return
	}
	for _, t := range evicted {
		c.onEvict(t)
	}
}
