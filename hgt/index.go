package hgt

import "math"

// Координаты внутри тайла:
//   - столбцы слева-направо (запад->восток): col = (lon - floor(lon)) * (side-1)
//   - строки сверху-вниз (север->юг):        row = (1 - (lat - floor(lat))) * (side-1)
//
// Дробная часть от floor работает одинаково во всех четвертях: для
// lat=-36.75 floor даёт -37 и дробь 0.25 — четверть градуса к северу от
// южного края, как и для lat=37.25.

// RowCol maps a coordinate to the nearest sample indexes of the tile that
// contains it, for a raster with the given side length. Row 0 is the
// northernmost row, col 0 the westernmost column, matching the raw HGT
// sample order.
func RowCol(lat, lon float64, side int) (row, col int) {
	fy := lat - math.Floor(lat)
	fx := lon - math.Floor(lon)
	row = int(math.Round((1 - fy) * float64(side-1)))
	col = int(math.Round(fx * float64(side-1)))
	return row, col
}

// PixelCoords returns the four sample indexes surrounding a coordinate plus
// the interpolation fractions inside that sample cell. Positions on the last
// row or column clamp to the inner-most cell so the quad always exists.
func PixelCoords(lat, lon float64, side int) (row0, col0, row1, col1 int, fy, fx float64) {
	colF := (lon - math.Floor(lon)) * float64(side-1)
	rowF := (1 - (lat - math.Floor(lat))) * float64(side-1)

	col0 = clamp(int(math.Floor(colF)), 0, side-2)
	row0 = clamp(int(math.Floor(rowF)), 0, side-2)

	fx = colF - float64(col0)
	fy = rowF - float64(row0)

	row1 = row0 + 1
	col1 = col0 + 1
	return row0, col0, row1, col1, fy, fx
}

// SampleLatLon returns the geographic coordinate of the sample at
// (row, col) in this tile for a raster with the given side length.
func (id TileID) SampleLatLon(row, col, side int) (lat, lon float64) {
	step := 1.0 / float64(side-1)
	lat = float64(id.LatDeg) + 1 - float64(row)*step
	lon = float64(id.LonDeg) + float64(col)*step
	return lat, lon
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
