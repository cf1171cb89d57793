// Package terrain implements the elevation engine: a bounded in-memory tile
// cache fed asynchronously from disk and HTTP, with grid snapshots for the
// analysis packages.
package terrain

import (
	"github.com/pavletto/terrainer/hgt"
)

// Status is the lifecycle state of a cached tile.
type Status uint8

const (
	// StatusReadScheduled marks a placeholder queued for the disk loader.
	StatusReadScheduled Status = iota
	// StatusReading means the loader is decoding the tile file.
	StatusReading
	// StatusValid means the raster is resident and queries resolve.
	StatusValid
	// StatusFileInvalid is terminal: the file exists but has a wrong size or
	// an unreadable archive. Such tiles are never retried or downloaded over.
	StatusFileInvalid
	// StatusFileMissing means no file is on disk and downloading is off.
	StatusFileMissing
	// StatusDownloadScheduled marks a placeholder queued for the downloader.
	StatusDownloadScheduled
	// StatusDownloading means a transfer is in progress.
	StatusDownloading
	// StatusDownloadFailed means the download errored. No automatic retry;
	// removing the tile and querying again retries deliberately.
	StatusDownloadFailed
)

func (s Status) String() string {
	switch s {
	case StatusReadScheduled:
		return "read-scheduled"
	case StatusReading:
		return "reading"
	case StatusValid:
		return "valid"
	case StatusFileInvalid:
		return "file-invalid"
	case StatusFileMissing:
		return "file-missing"
	case StatusDownloadScheduled:
		return "download-scheduled"
	case StatusDownloading:
		return "downloading"
	case StatusDownloadFailed:
		return "download-failed"
	}
	return "unknown"
}

// Terminal reports whether the loader and downloader are done with this
// status. WaitForArea waits until every tile in the area is terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusValid, StatusFileInvalid, StatusFileMissing, StatusDownloadFailed:
		return true
	}
	return false
}

// Tile is one degree square tracked by a cache. There is exactly one Tile
// per ID per cache; state transitions mutate it in place, so a pointer
// handed out earlier observes later updates. All state lives behind the
// owning cache's mutex and no mutable alias ever escapes it.
//
// A tile holds its raster iff its status is StatusValid. Every other status
// is a zero-size placeholder.
type Tile struct {
	id    hgt.TileID
	cache *TileCache

	// всё ниже — только под cache.mu
	status     Status
	raster     *hgt.Raster
	lastAccess uint64
}

// ID returns the tile's identity. Immutable, safe without the lock.
func (t *Tile) ID() hgt.TileID { return t.id }

// Status returns the current lifecycle state.
func (t *Tile) Status() Status {
	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()
	return t.status
}

// Snapshot returns the status and raster under one lock acquisition. The
// raster is immutable and safe to keep after the call.
func (t *Tile) Snapshot() (Status, *hgt.Raster) {
	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()
	t.lastAccess = t.cache.nextStampLocked()
	return t.status, t.raster
}

// SizeBytes returns the resident raster size, 0 for placeholders.
func (t *Tile) SizeBytes() int64 {
	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()
	return t.sizeLocked()
}

func (t *Tile) sizeLocked() int64 {
	if t.raster == nil {
		return 0
	}
	return t.raster.Res().ByteSize()
}

// ElevationAt returns the nearest-sample elevation at the coordinate, or
// VoidElevation when the tile is not valid or the coordinate belongs to a
// different tile. The access refreshes the tile's eviction stamp.
func (t *Tile) ElevationAt(lat, lon float64) int16 {
	t.cache.mu.Lock()
	defer t.cache.mu.Unlock()
	t.lastAccess = t.cache.nextStampLocked()
	if t.status != StatusValid || !t.id.Contains(lat, lon) {
		return hgt.VoidElevation
	}
	row, col := hgt.RowCol(lat, lon, t.raster.Side())
	return t.raster.At(row, col)
}
