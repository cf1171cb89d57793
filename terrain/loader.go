package terrain

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/pavletto/terrainer/hgt"
)

// loader is the single sequential disk worker of an engine. Tiles queue as
// read-scheduled placeholders; the worker advances each to its terminal
// state or hands it to the downloader. Completions are keyed by ID: the
// tile is looked up again before every transition, so work for an entry
// that was removed in the meantime is quietly dropped.
type loader struct {
	store  *FileStore
	cache  *TileCache
	dl     *downloader // nil when no download URL is configured
	events *hub
	log    *slog.Logger

	downloadOn func() bool
	queue      chan hgt.TileID
	wg         sync.WaitGroup
}

func newLoader(store *FileStore, cache *TileCache, events *hub, log *slog.Logger, depth int) *loader {
	if depth <= 0 {
		depth = 256
	}
	return &loader{
		store:  store,
		cache:  cache,
		events: events,
		log:    log,
		queue:  make(chan hgt.TileID, depth),
	}
}

func (l *loader) start(ctx context.Context) {
	l.wg.Add(1)
	go l.run(ctx)
}

func (l *loader) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-l.queue:
			l.load(ctx, id)
		}
	}
}

// enqueue hands a scheduled tile to the worker without blocking. On a full
// queue it reports false and the caller forgets the placeholder so a later
// query can try again.
func (l *loader) enqueue(id hgt.TileID) bool {
	select {
	case l.queue <- id:
		return true
	default:
		return false
	}
}

func (l *loader) load(ctx context.Context, id hgt.TileID) {
	t := l.cache.Get(id)
	if t == nil || t.Status() != StatusReadScheduled {
		// устаревшая запись в очереди: тайл убрали или уже обработали
		return
	}
	l.cache.PutOrUpdate(id, nil, StatusReading)

	raw, err := l.store.Read(id)
	switch {
	case err == nil:
		r, derr := hgt.DecodeRaster(raw)
		if derr != nil {
			l.cache.PutOrUpdate(id, nil, StatusFileInvalid)
			l.events.publish(Event{Type: EventTileLoadFailed, Tile: id, Err: derr})
			l.log.Warn("tile file invalid", "tile", id.String(), "err", derr)
			return
		}
		l.cache.PutOrUpdate(id, r, StatusValid)
		l.events.publish(Event{Type: EventTileLoaded, Tile: id, Bytes: r.Res().ByteSize()})
		l.log.Debug("tile loaded", "tile", id.String(), "resolution", r.Res().String())

	case errors.Is(err, os.ErrNotExist):
		if l.dl != nil && l.downloadOn() {
			l.cache.PutOrUpdate(id, nil, StatusDownloadScheduled)
			if !l.dl.enqueue(id) {
				l.cache.PutOrUpdate(id, nil, StatusDownloadFailed)
				l.events.publish(Event{Type: EventDownloadFailed, Tile: id, Err: errDownloadQueueFull})
				l.log.Warn("download queue full", "tile", id.String())
			}
			return
		}
		l.cache.PutOrUpdate(id, nil, StatusFileMissing)
		l.events.publish(Event{Type: EventTileMissing, Tile: id})
		l.log.Debug("tile missing", "tile", id.String())

	default:
		// файл есть, но прочитать нельзя (битый архив, права)
		l.cache.PutOrUpdate(id, nil, StatusFileInvalid)
		l.events.publish(Event{Type: EventTileLoadFailed, Tile: id, Err: err})
		l.log.Warn("tile unreadable", "tile", id.String(), "err", err)
	}
}
