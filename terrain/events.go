package terrain

import (
	"sync"

	"github.com/google/uuid"

	"github.com/pavletto/terrainer/hgt"
)

// EventType enumerates the tile lifecycle notifications.
type EventType uint8

const (
	// EventTileLoaded fires when the loader decoded a file into the cache.
	EventTileLoaded EventType = iota
	// EventTileLoadFailed fires when a file was present but undecodable.
	EventTileLoadFailed
	// EventTileMissing fires when no file exists and downloading is off.
	EventTileMissing
	// EventDownloadStarted fires when a worker picked the tile up.
	EventDownloadStarted
	// EventDownloadSucceeded fires after persist and decode completed.
	EventDownloadSucceeded
	// EventDownloadFailed fires on any download error.
	EventDownloadFailed
	// EventTileEvicted fires when the cache dropped a resident tile.
	EventTileEvicted
	// EventAnalysisStarted fires when a long-running tool computation
	// begins; Tool names it.
	EventAnalysisStarted
	// EventAnalysisSucceeded fires when the computation delivered a result.
	EventAnalysisSucceeded
	// EventAnalysisFailed fires when it errored or was cancelled.
	EventAnalysisFailed
)

func (t EventType) String() string {
	switch t {
	case EventTileLoaded:
		return "tile-loaded"
	case EventTileLoadFailed:
		return "tile-load-failed"
	case EventTileMissing:
		return "tile-missing"
	case EventDownloadStarted:
		return "download-started"
	case EventDownloadSucceeded:
		return "download-succeeded"
	case EventDownloadFailed:
		return "download-failed"
	case EventTileEvicted:
		return "tile-evicted"
	case EventAnalysisStarted:
		return "analysis-started"
	case EventAnalysisSucceeded:
		return "analysis-succeeded"
	case EventAnalysisFailed:
		return "analysis-failed"
	}
	return "unknown"
}

// Event is one tile lifecycle or analysis notification. Job groups the
// events of a single transfer or computation; it is the zero UUID for
// loader and cache events. Bytes carries the transferred size on download
// success; Tool names the computation on analysis events.
type Event struct {
	Type  EventType
	Tile  hgt.TileID
	Job   uuid.UUID
	Tool  string
	Bytes int64
	Err   error
}

// hub fans events out to subscribers. Delivery is non-blocking: when a
// subscriber's buffer is full the event is skipped for that subscriber, so
// a stalled consumer can never stall the engine.
type hub struct {
	// onPublish runs synchronously for every event, before fan-out. The
	// engine installs it before the workers start; unlike subscribers it
	// never misses an event.
	onPublish func(Event)

	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *hub) publish(e Event) {
	if h.onPublish != nil {
		h.onPublish(e)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default: // буфер полон — подписчик пропускает событие
		}
	}
}
