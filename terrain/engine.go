package terrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pavletto/terrainer/hgt"
)

// ErrNotResident reports a query against a tile that is not valid in the
// cache yet. The query has already scheduled whatever work the tile needs;
// asking again later, or waiting on the area, resolves it.
var ErrNotResident = errors.New("terrain: tile not resident")

const waitPollInterval = 100 * time.Millisecond

// Config configures an Engine.
type Config struct {
	// DataDir is the flat directory of .hgt/.hgt.zip/.hgt.gz files.
	DataDir string
	// CacheBytes bounds resident raster data; <= 0 means unbounded.
	CacheBytes int64
	// Resolution picks which file set downloads fetch. Disk files decode at
	// whatever resolution their size says regardless of this preference.
	Resolution hgt.Resolution
	// AutoDownload enables fetching missing tiles at startup; it can be
	// toggled later with SetDownloadEnabled.
	AutoDownload bool
	// SRTM1URLTemplate and SRTM3URLTemplate expand {tile} to the tile name,
	// e.g. "https://example.com/srtm1/{tile}.hgt.gz".
	SRTM1URLTemplate string
	SRTM3URLTemplate string
	// Auth authenticates download requests.
	Auth AuthConfig
	// DownloadWorkers is the download pool width, default 2.
	DownloadWorkers int
	// RateLimit caps download requests per second, 0 = unlimited.
	RateLimit float64
	// QueueDepth sizes the loader and downloader channels.
	QueueDepth int
	// HTTPTimeout bounds one download request, default 60s.
	HTTPTimeout time.Duration
	// Logger receives structured engine logs, slog.Default() when nil.
	Logger *slog.Logger
}

// Stats is a point-in-time snapshot of the engine counters.
type Stats struct {
	Queries          int64 `json:"queries"`
	Hits             int64 `json:"hits"`
	Loads            int64 `json:"loads"`
	LoadFailures     int64 `json:"load_failures"`
	Downloads        int64 `json:"downloads"`
	DownloadFailures int64 `json:"download_failures"`
	Evictions        int64 `json:"evictions"`
	CacheTiles       int   `json:"cache_tiles"`
	CacheBytes       int64 `json:"cache_bytes"`
}

// Engine answers elevation queries from a bounded tile cache, loading tile
// files asynchronously and optionally downloading missing ones. Queries
// never block on I/O: a miss schedules work and reports void until the tile
// arrives. All methods are safe for concurrent use.
type Engine struct {
	cfg    Config
	log    *slog.Logger
	cache  *TileCache
	store  *FileStore
	loader *loader
	dl     *downloader
	events *hub

	downloadOn atomic.Bool
	closed     atomic.Bool
	cancel     context.CancelFunc
	closeOnce  sync.Once

	queries          atomic.Int64
	hits             atomic.Int64
	loads            atomic.Int64
	loadFailures     atomic.Int64
	downloads        atomic.Int64
	downloadFailures atomic.Int64
	evictions        atomic.Int64
}

// New validates the configuration and starts the engine workers.
func New(cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.Resolution == hgt.ResolutionUnknown {
		cfg.Resolution = hgt.SRTM1
	}
	store, err := NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if cfg.AutoDownload && cfg.SRTM1URLTemplate == "" && cfg.SRTM3URLTemplate == "" {
		return nil, fmt.Errorf("terrain: auto download needs a url template")
	}

	e := &Engine{
		cfg:    cfg,
		log:    log,
		cache:  NewTileCache(cfg.CacheBytes),
		store:  store,
		events: newHub(),
	}
	e.cache.onEvict = func(t *Tile) {
		e.events.publish(Event{Type: EventTileEvicted, Tile: t.ID()})
	}
	e.events.onPublish = e.tally

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.loader = newLoader(store, e.cache, e.events, log, cfg.QueueDepth)
	if cfg.SRTM1URLTemplate != "" || cfg.SRTM3URLTemplate != "" {
		e.dl = newDownloader(store, e.cache, e.events, log, downloaderConfig{
			srtm1URL: cfg.SRTM1URLTemplate,
			srtm3URL: cfg.SRTM3URLTemplate,
			res:      cfg.Resolution,
			auth:     cfg.Auth,
			rateRPS:  cfg.RateLimit,
			timeout:  cfg.HTTPTimeout,
			depth:    cfg.QueueDepth,
		})
		e.dl.start(ctx, cfg.DownloadWorkers)
	}
	e.downloadOn.Store(cfg.AutoDownload && e.dl != nil)
	e.loader.dl = e.dl
	e.loader.downloadOn = e.downloadOn.Load
	e.loader.start(ctx)

	log.Info("terrain engine started",
		"data_dir", cfg.DataDir,
		"cache_bytes", cfg.CacheBytes,
		"resolution", cfg.Resolution.String(),
		"download", e.downloadOn.Load())
	return e, nil
}

// Close stops the workers and waits for them. Idempotent. Queries after
// Close still read whatever stayed cached but schedule nothing new.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.cancel()
		e.loader.wg.Wait()
		if e.dl != nil {
			e.dl.wg.Wait()
		}
		e.log.Info("terrain engine stopped")
	})
}

// ElevationAt returns the nearest-sample elevation at the coordinate, or
// VoidElevation when the owning tile is not resident. A miss schedules the
// tile and returns immediately; the call never blocks on I/O.
func (e *Engine) ElevationAt(lat, lon float64) int16 {
	e.queries.Add(1)
	id := hgt.TileIDOf(lat, lon)
	if t := e.cache.Get(id); t != nil {
		v := t.ElevationAt(lat, lon)
		if v != hgt.VoidElevation {
			e.hits.Add(1)
		}
		return v
	}
	e.scheduleLoad(id)
	return hgt.VoidElevation
}

// InterpolatedElevationAt returns the bilinear elevation from the four
// samples surrounding the coordinate inside its owning tile, clamped at
// tile edges. It reports ErrNotResident (after scheduling) while the tile
// is not valid and ErrVoidValue when a surrounding sample is void.
func (e *Engine) InterpolatedElevationAt(lat, lon float64) (float64, error) {
	e.queries.Add(1)
	id := hgt.TileIDOf(lat, lon)
	t := e.cache.Get(id)
	if t == nil {
		e.scheduleLoad(id)
		return 0, ErrNotResident
	}
	st, r := t.Snapshot()
	if st != StatusValid {
		return 0, ErrNotResident
	}
	e.hits.Add(1)

	row0, col0, row1, col1, fy, fx := hgt.PixelCoords(lat, lon, r.Side())
	rect := Rect{
		X0: 0, X1: 1, Y0: 0, Y1: 1,
		V00: float64(r.At(row0, col0)),
		V10: float64(r.At(row0, col1)),
		V01: float64(r.At(row1, col0)),
		V11: float64(r.At(row1, col1)),
	}
	return Bilinear(rect, fx, fy)
}

// TileStatus reports the cached status of a tile without scheduling
// anything.
func (e *Engine) TileStatus(id hgt.TileID) (Status, bool) {
	t := e.cache.Get(id)
	if t == nil {
		return 0, false
	}
	return t.Status(), true
}

// Forget drops a tile from the cache. The next query over it starts from
// scratch, which is the deliberate retry path after a failed download.
func (e *Engine) Forget(id hgt.TileID) bool {
	return e.cache.Remove(id) != nil
}

func (e *Engine) scheduleLoad(id hgt.TileID) {
	if e.closed.Load() {
		return
	}
	e.cache.PutOrUpdate(id, nil, StatusReadScheduled)
	if !e.loader.enqueue(id) {
		// очередь полна: забываем заглушку, следующий запрос повторит
		e.cache.Remove(id)
		e.log.Debug("load queue full", "tile", id.String())
	}
}

// tileRange returns the whole-degree corners spanned by the box.
func tileRange(south, west, north, east float64) (minLat, maxLat, minLon, maxLon int, err error) {
	if south >= north || west >= east {
		return 0, 0, 0, 0, fmt.Errorf("terrain: invalid bounds [%v %v %v %v]", south, west, north, east)
	}
	minLat = int(math.Floor(south))
	maxLat = int(math.Ceil(north)) - 1
	minLon = int(math.Floor(west))
	maxLon = int(math.Ceil(east)) - 1
	return minLat, maxLat, minLon, maxLon, nil
}

// EnsureArea touches every tile intersecting the box so misses get
// scheduled. Fire and forget.
func (e *Engine) EnsureArea(south, west, north, east float64) error {
	minLat, maxLat, minLon, maxLon, err := tileRange(south, west, north, east)
	if err != nil {
		return err
	}
	for lat := minLat; lat <= maxLat; lat++ {
		for lon := minLon; lon <= maxLon; lon++ {
			id := hgt.TileID{LatDeg: lat, LonDeg: lon}
			if e.cache.Get(id) == nil {
				e.scheduleLoad(id)
			}
		}
	}
	return nil
}

// WaitForArea ensures the area and blocks until every tile in it reaches a
// terminal status or the context ends. Terminal is not necessarily valid:
// missing and failed tiles terminate too and read as void afterwards.
func (e *Engine) WaitForArea(ctx context.Context, south, west, north, east float64) error {
	minLat, maxLat, minLon, maxLon, err := tileRange(south, west, north, east)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		settled := true
		for lat := minLat; lat <= maxLat && settled; lat++ {
			for lon := minLon; lon <= maxLon; lon++ {
				id := hgt.TileID{LatDeg: lat, LonDeg: lon}
				t := e.cache.Get(id)
				if t == nil {
					// вытеснили, пока ждали — запросим снова
					e.scheduleLoad(id)
					settled = false
					break
				}
				if !t.Status().Terminal() {
					settled = false
					break
				}
			}
		}
		if settled {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Snapshot assembles an immutable grid over the tiles covering the box,
// snapped outward to whole degrees. Non-valid tiles read as void;
// ErrNoValidTiles reports an area with no data at all.
func (e *Engine) Snapshot(south, west, north, east float64) (*Grid, error) {
	minLat, maxLat, minLon, maxLon, err := tileRange(south, west, north, east)
	if err != nil {
		return nil, err
	}
	tiles := make([][]*hgt.Raster, 0, maxLat-minLat+1)
	for lat := maxLat; lat >= minLat; lat-- { // ряд 0 — северный
		row := make([]*hgt.Raster, 0, maxLon-minLon+1)
		for lon := minLon; lon <= maxLon; lon++ {
			var raster *hgt.Raster
			if t := e.cache.Get(hgt.TileID{LatDeg: lat, LonDeg: lon}); t != nil {
				if st, r := t.Snapshot(); st == StatusValid {
					raster = r
				}
			}
			row = append(row, raster)
		}
		tiles = append(tiles, row)
	}
	return newGrid(minLat, minLon, tiles)
}

// Subscribe registers an event listener with the given channel buffer.
// Delivery is best effort: events that would block are dropped for that
// subscriber. The returned function unsubscribes and closes the channel;
// calling it twice is safe.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	return e.events.subscribe(buffer)
}

// SetDownloadEnabled toggles fetching of missing tiles. Enabling clears
// file-missing tiles so earlier misses get probed again; disabling lets
// in-flight transfers finish and stops scheduling new ones.
func (e *Engine) SetDownloadEnabled(on bool) {
	if on && e.dl == nil {
		e.log.Warn("cannot enable downloads without a url template")
		return
	}
	e.downloadOn.Store(on)
	if on {
		n := e.cache.ClearStatus(StatusFileMissing)
		e.log.Info("downloads enabled", "reprobed_tiles", n)
	} else {
		e.log.Info("downloads disabled")
	}
}

// DownloadEnabled reports the current toggle.
func (e *Engine) DownloadEnabled() bool { return e.downloadOn.Load() }

// tally keeps the counters in step with the event stream. It runs on every
// publish regardless of subscriber backlog.
func (e *Engine) tally(ev Event) {
	switch ev.Type {
	case EventTileLoaded:
		e.loads.Add(1)
	case EventTileLoadFailed:
		e.loadFailures.Add(1)
	case EventDownloadSucceeded:
		e.downloads.Add(1)
	case EventDownloadFailed:
		e.downloadFailures.Add(1)
	case EventTileEvicted:
		e.evictions.Add(1)
	}
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Queries:          e.queries.Load(),
		Hits:             e.hits.Load(),
		Loads:            e.loads.Load(),
		LoadFailures:     e.loadFailures.Load(),
		Downloads:        e.downloads.Load(),
		DownloadFailures: e.downloadFailures.Load(),
		Evictions:        e.evictions.Load(),
		CacheTiles:       e.cache.Len(),
		CacheBytes:       e.cache.SizeBytes(),
	}
}
