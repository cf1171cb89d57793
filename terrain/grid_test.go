package terrain

import (
	"errors"
	"math"
	"testing"

	"github.com/pavletto/terrainer/hgt"
)

func rasterOf(t *testing.T, res hgt.Resolution, fill func(row, col int) int16) *hgt.Raster {
	t.Helper()
	side := res.SideLen()
	data := make([]byte, res.ByteSize())
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			v := uint16(fill(row, col))
			i := 2 * (row*side + col)
			data[i] = byte(v >> 8)
			data[i+1] = byte(v)
		}
	}
	r, err := hgt.DecodeRaster(data)
	if err != nil {
		t.Fatalf("DecodeRaster() error = %v", err)
	}
	return r
}

func TestNewGridNoData(t *testing.T) {
	if _, err := newGrid(37, -105, [][]*hgt.Raster{{nil, nil}}); !errors.Is(err, ErrNoValidTiles) {
		t.Errorf("newGrid() with nil tiles error = %v, want ErrNoValidTiles", err)
	}
	if _, err := newGrid(37, -105, nil); !errors.Is(err, ErrNoValidTiles) {
		t.Errorf("newGrid() with no tile rows error = %v, want ErrNoValidTiles", err)
	}
}

func TestGridDimsAndBounds(t *testing.T) {
	north := rasterOf(t, hgt.SRTM3, func(int, int) int16 { return 1 })
	south := rasterOf(t, hgt.SRTM3, func(int, int) int16 { return 2 })
	g, err := newGrid(37, -105, [][]*hgt.Raster{{north}, {south}})
	if err != nil {
		t.Fatalf("newGrid() error = %v", err)
	}

	rows, cols := g.Dims()
	if rows != 2401 || cols != 1201 {
		t.Errorf("Dims() = (%d, %d), want (2401, 1201)", rows, cols)
	}
	s, w, n, e := g.Bounds()
	if s != 37 || w != -105 || n != 39 || e != -104 {
		t.Errorf("Bounds() = (%v, %v, %v, %v), want (37, -105, 39, -104)", s, w, n, e)
	}
	if g.Res() != hgt.SRTM3 {
		t.Errorf("Res() = %v, want SRTM3", g.Res())
	}
}

func TestGridSharedEdgeBelongsToSouthernTile(t *testing.T) {
	north := rasterOf(t, hgt.SRTM3, func(int, int) int16 { return 1 })
	south := rasterOf(t, hgt.SRTM3, func(int, int) int16 { return 2 })
	g, err := newGrid(37, -105, [][]*hgt.Raster{{north}, {south}})
	if err != nil {
		t.Fatalf("newGrid() error = %v", err)
	}

	if got := g.Sample(1199, 600); got != 1 {
		t.Errorf("Sample(1199, 600) = %d, want northern tile value 1", got)
	}
	if got := g.Sample(1200, 600); got != 2 {
		t.Errorf("Sample(1200, 600) = %d, want southern tile value 2", got)
	}
	if got := g.Sample(2400, 600); got != 2 {
		t.Errorf("Sample(2400, 600) = %d, want southern tile value 2", got)
	}
}

func TestGridMixedResolutionStride(t *testing.T) {
	// SRTM1 рядом с SRTM3: мозаика работает в грубой сетке, мелкий растр
	// читается через шаг 3
	fine := rasterOf(t, hgt.SRTM1, func(row, col int) int16 { return int16(row) })
	coarse := rasterOf(t, hgt.SRTM3, func(row, col int) int16 { return int16(row) + 10000 })
	g, err := newGrid(37, -105, [][]*hgt.Raster{{fine, coarse}})
	if err != nil {
		t.Fatalf("newGrid() error = %v", err)
	}

	if g.Res() != hgt.SRTM3 {
		t.Fatalf("Res() = %v, want SRTM3", g.Res())
	}
	rows, cols := g.Dims()
	if rows != 1201 || cols != 2401 {
		t.Errorf("Dims() = (%d, %d), want (1201, 2401)", rows, cols)
	}
	// мозаичный ряд 5 в мелком растре лежит на строке 15
	if got := g.Sample(5, 0); got != 15 {
		t.Errorf("Sample(5, 0) = %d, want 15", got)
	}
	// соседний грубый тайл читается без шага
	if got := g.Sample(5, 1205); got != 10005 {
		t.Errorf("Sample(5, 1205) = %d, want 10005", got)
	}
}

func TestGridNilTileReadsVoid(t *testing.T) {
	left := rasterOf(t, hgt.SRTM3, func(int, int) int16 { return 42 })
	g, err := newGrid(37, -105, [][]*hgt.Raster{{left, nil}})
	if err != nil {
		t.Fatalf("newGrid() error = %v", err)
	}
	if got := g.Sample(600, 600); got != 42 {
		t.Errorf("Sample() in present tile = %d, want 42", got)
	}
	if got := g.Sample(600, 1800); got != hgt.VoidElevation {
		t.Errorf("Sample() in missing tile = %d, want void", got)
	}
	if got := g.Sample(-1, 0); got != hgt.VoidElevation {
		t.Errorf("Sample() outside mosaic = %d, want void", got)
	}
}

func TestGridIndexLatLonRoundTrip(t *testing.T) {
	r := rasterOf(t, hgt.SRTM3, func(row, col int) int16 { return int16(row + col) })
	g, err := newGrid(37, -105, [][]*hgt.Raster{{r}})
	if err != nil {
		t.Fatalf("newGrid() error = %v", err)
	}

	row, col, ok := g.Index(37.5, -104.5)
	if !ok || row != 600 || col != 600 {
		t.Fatalf("Index(37.5, -104.5) = (%d, %d, %v), want (600, 600, true)", row, col, ok)
	}
	lat, lon := g.LatLon(row, col)
	if math.Abs(lat-37.5) > 1e-9 || math.Abs(lon+104.5) > 1e-9 {
		t.Errorf("LatLon(600, 600) = (%v, %v), want (37.5, -104.5)", lat, lon)
	}

	if _, _, ok := g.Index(36.0, -104.5); ok {
		t.Error("Index() south of mosaic reported ok")
	}
	if _, _, ok := g.Index(37.5, -103.0); ok {
		t.Error("Index() east of mosaic reported ok")
	}
}

func TestGridMinMax(t *testing.T) {
	r := rasterOf(t, hgt.SRTM3, func(row, col int) int16 {
		switch {
		case row == 0 && col == 0:
			return hgt.VoidElevation
		case row == 100 && col == 100:
			return -11
		case row == 200 && col == 200:
			return 8848
		}
		return 500
	})
	g, err := newGrid(37, -105, [][]*hgt.Raster{{r}})
	if err != nil {
		t.Fatalf("newGrid() error = %v", err)
	}
	min, max, ok := g.MinMax()
	if !ok || min != -11 || max != 8848 {
		t.Errorf("MinMax() = (%d, %d, %v), want (-11, 8848, true)", min, max, ok)
	}
}
