// Package contour traces elevation isolines over a raster with marching
// squares. Segments come out as geographic coordinate pairs ready for
// GeoJSON; Join assembles them into polylines.
package contour

import (
	"context"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/pavletto/terrainer/hgt"
)

// Raster is the sample source. Row 0 is the northern edge; LatLon reports
// the geographic position of a sample.
type Raster interface {
	Dims() (rows, cols int)
	Sample(row, col int) int16
	LatLon(row, col int) (lat, lon float64)
}

// Segment is one isoline piece crossing a single cell. Points are
// orb-ordered, longitude first.
type Segment struct {
	A, B orb.Point
}

// Isoline carries the raw segments of one level.
type Isoline struct {
	Level    float64
	Segments []Segment
}

// Lines traces every level over the raster, one goroutine per level. Cells
// touching a void sample are skipped. The result keeps the order of levels;
// a level that crosses nothing gets an empty segment list.
func Lines(ctx context.Context, r Raster, levels []float64) ([]Isoline, error) {
	rows, cols := r.Dims()
	out := make([]Isoline, len(levels))

	g, ctx := errgroup.WithContext(ctx)
	for i, level := range levels {
		g.Go(func() error {
			segs, err := traceLevel(ctx, r, rows, cols, level)
			if err != nil {
				return err
			}
			out[i] = Isoline{Level: level, Segments: segs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Углы ячейки и их биты в коде случая:
//
//	nw(8) -- ne(4)
//	 |        |
//	sw(1) -- se(2)
func traceLevel(ctx context.Context, r Raster, rows, cols int, level float64) ([]Segment, error) {
	var segs []Segment
	add := func(a, b orb.Point) {
		if a != b {
			segs = append(segs, Segment{A: a, B: b})
		}
	}

	for row := 0; row < rows-1; row++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for col := 0; col < cols-1; col++ {
			nw := r.Sample(row, col)
			ne := r.Sample(row, col+1)
			sw := r.Sample(row+1, col)
			se := r.Sample(row+1, col+1)
			if nw == hgt.VoidElevation || ne == hgt.VoidElevation ||
				sw == hgt.VoidElevation || se == hgt.VoidElevation {
				continue
			}

			code := 0
			if float64(nw) >= level {
				code |= 8
			}
			if float64(ne) >= level {
				code |= 4
			}
			if float64(se) >= level {
				code |= 2
			}
			if float64(sw) >= level {
				code |= 1
			}
			if code == 0 || code == 15 {
				continue
			}

			top := func() orb.Point { return crossH(r, row, col, nw, ne, level) }
			bottom := func() orb.Point { return crossH(r, row+1, col, sw, se, level) }
			left := func() orb.Point { return crossV(r, row, col, nw, sw, level) }
			right := func() orb.Point { return crossV(r, row, col+1, ne, se, level) }

			switch code {
			case 1, 14:
				add(left(), bottom())
			case 2, 13:
				add(bottom(), right())
			case 3, 12:
				add(left(), right())
			case 4, 11:
				add(top(), right())
			case 6, 9:
				add(top(), bottom())
			case 7, 8:
				add(left(), top())
			case 5:
				// седло: среднее по углам решает, как соединять
				if mean4(nw, ne, se, sw) >= level {
					add(top(), left())
					add(bottom(), right())
				} else {
					add(top(), right())
					add(bottom(), left())
				}
			case 10:
				if mean4(nw, ne, se, sw) >= level {
					add(top(), right())
					add(bottom(), left())
				} else {
					add(top(), left())
					add(bottom(), right())
				}
			}
		}
	}
	return segs, nil
}

func mean4(a, b, c, d int16) float64 {
	return (float64(a) + float64(b) + float64(c) + float64(d)) / 4
}

// crossH interpolates the crossing on the horizontal edge from (row,col) to
// (row,col+1). Shared edges always interpolate from the same two samples,
// so neighbouring cells produce bit-identical points and Join can match
// them exactly.
func crossH(r Raster, row, col int, va, vb int16, level float64) orb.Point {
	lat, lonA := r.LatLon(row, col)
	_, lonB := r.LatLon(row, col+1)
	t := (level - float64(va)) / (float64(vb) - float64(va))
	return orb.Point{lonA + t*(lonB-lonA), lat}
}

// crossV interpolates the crossing on the vertical edge from (row,col) to
// (row+1,col).
func crossV(r Raster, row, col int, va, vb int16, level float64) orb.Point {
	latA, lon := r.LatLon(row, col)
	latB, _ := r.LatLon(row+1, col)
	t := (level - float64(va)) / (float64(vb) - float64(va))
	return orb.Point{lon, latA + t*(latB-latA)}
}
