package terrain

import (
	"errors"
	"math"

	"github.com/pavletto/terrainer/hgt"
)

// ErrNoValidTiles reports a snapshot over an area without a single valid
// tile; there is nothing to compute products from.
var ErrNoValidTiles = errors.New("terrain: no valid tiles in area")

// Grid is an immutable mosaic over whole-degree tiles, snapped outward to
// tile boundaries. Missing or non-valid tiles read as void. Rasters are
// shared with the cache, never copied; they are immutable after decode, so
// a Grid needs no locking and is safe for concurrent readers.
//
// A mixed-resolution mosaic works at the coarsest member resolution.
// Finer rasters are viewed through an exact stride: 3600 = 3 x 1200, so
// every SRTM3 sample position hits an SRTM1 sample position dead on.
//
// Row 0 is the northernmost sample row, column 0 the westernmost column.
// Adjacent tiles share one edge row/column, counted once in the mosaic.
type Grid struct {
	south, west    int // south-west tile corner, whole degrees
	tilesY, tilesX int
	side           int // samples per tile side at grid resolution
	res            hgt.Resolution
	rasters        [][]*hgt.Raster // [tileRow][tileCol], tileRow 0 at the north
}

// newGrid assembles a mosaic from per-tile rasters; tiles[0][0] is the
// north-west tile. Nil entries stand for missing tiles.
func newGrid(south, west int, tiles [][]*hgt.Raster) (*Grid, error) {
	tilesY := len(tiles)
	if tilesY == 0 || len(tiles[0]) == 0 {
		return nil, ErrNoValidTiles
	}
	tilesX := len(tiles[0])

	res := hgt.ResolutionUnknown
	for _, row := range tiles {
		for _, r := range row {
			if r == nil {
				continue
			}
			// самое грубое разрешение из присутствующих
			if res == hgt.ResolutionUnknown || r.Side() < res.SideLen() {
				res = r.Res()
			}
		}
	}
	if res == hgt.ResolutionUnknown {
		return nil, ErrNoValidTiles
	}
	return &Grid{
		south:   south,
		west:    west,
		tilesY:  tilesY,
		tilesX:  tilesX,
		side:    res.SideLen(),
		res:     res,
		rasters: tiles,
	}, nil
}

// Res returns the mosaic resolution, the coarsest among its tiles.
func (g *Grid) Res() hgt.Resolution { return g.res }

// Side returns samples per tile side at mosaic resolution.
func (g *Grid) Side() int { return g.side }

// Dims returns the mosaic sample dimensions. Shared tile edges count once:
// rows = tilesDown*(side-1)+1, likewise columns.
func (g *Grid) Dims() (rows, cols int) {
	return g.tilesY*(g.side-1) + 1, g.tilesX*(g.side-1) + 1
}

// Bounds returns the snapped geographic extent of the mosaic.
func (g *Grid) Bounds() (south, west, north, east float64) {
	return float64(g.south), float64(g.west),
		float64(g.south + g.tilesY), float64(g.west + g.tilesX)
}

// CellDeg returns the sample spacing in degrees.
func (g *Grid) CellDeg() float64 {
	return 1.0 / float64(g.side-1)
}

// Sample returns the elevation at mosaic position (row, col), void when the
// position falls on a missing tile or outside the mosaic.
func (g *Grid) Sample(row, col int) int16 {
	rows, cols := g.Dims()
	if row < 0 || col < 0 || row >= rows || col >= cols {
		return hgt.VoidElevation
	}
	tr := row / (g.side - 1)
	lr := row - tr*(g.side-1)
	if tr == g.tilesY { // южная кромка мозаики принадлежит последнему ряду тайлов
		tr--
		lr = g.side - 1
	}
	tc := col / (g.side - 1)
	lc := col - tc*(g.side-1)
	if tc == g.tilesX {
		tc--
		lc = g.side - 1
	}
	r := g.rasters[tr][tc]
	if r == nil {
		return hgt.VoidElevation
	}
	stride := (r.Side() - 1) / (g.side - 1)
	return r.At(lr*stride, lc*stride)
}

// LatLon returns the geographic coordinate of the sample at (row, col).
func (g *Grid) LatLon(row, col int) (lat, lon float64) {
	cell := g.CellDeg()
	lat = float64(g.south+g.tilesY) - float64(row)*cell
	lon = float64(g.west) + float64(col)*cell
	return lat, lon
}

// Index maps a coordinate to the nearest mosaic sample. ok is false outside
// the mosaic extent.
func (g *Grid) Index(lat, lon float64) (row, col int, ok bool) {
	s, w, n, e := g.Bounds()
	if lat < s || lat > n || lon < w || lon > e {
		return 0, 0, false
	}
	row = int(math.Round((n - lat) * float64(g.side-1)))
	col = int(math.Round((lon - w) * float64(g.side-1)))
	rows, cols := g.Dims()
	if row < 0 || col < 0 || row >= rows || col >= cols {
		return 0, 0, false
	}
	return row, col, true
}

// MinMax scans the mosaic for its elevation range, skipping voids. ok is
// false when every sample is void.
func (g *Grid) MinMax() (min, max int16, ok bool) {
	rows, cols := g.Dims()
	min, max = math.MaxInt16, math.MinInt16
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			v := g.Sample(row, col)
			if v == hgt.VoidElevation {
				continue
			}
			ok = true
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}
