// Package saddle searches elevation rasters for topographic features that
// need whole-raster connectivity: the key col between two peaks and the
// isolation distance of a summit.
package saddle

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pavletto/terrainer/hgt"
)

var (
	ErrOutside      = errors.New("saddle: point outside raster")
	ErrSameCell     = errors.New("saddle: peaks fall into the same cell")
	ErrVoidSummit   = errors.New("saddle: summit elevation is void")
	ErrNotConnected = errors.New("saddle: peaks not connected by valid data")
	ErrHighestPoint = errors.New("saddle: no higher ground in raster")
)

// Connectivity selects the cell neighbourhood of the flood.
type Connectivity int

const (
	Conn4 Connectivity = 4
	Conn8 Connectivity = 8
)

var (
	neigh4 = [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	neigh8 = [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

// Raster is the sample source. Row 0 is the northern edge.
type Raster interface {
	Dims() (rows, cols int)
	Sample(row, col int) int16
	LatLon(row, col int) (lat, lon float64)
	Index(lat, lon float64) (row, col int, ok bool)
}

// Point is a georeferenced raster sample.
type Point struct {
	Lat, Lon  float64
	Elevation int16
}

// Result carries the snapped peak cells and the key col between them.
type Result struct {
	PeakA, PeakB Point
	Col          Point
}

// KeyCol finds the highest pass connecting the two peaks: cells activate in
// descending elevation order and union with active neighbours; the first
// cell whose activation puts both peaks into one component is the col.
// Conn8 lets the flood cross diagonal ridgelines, Conn4 does not; zero
// means Conn8. Void cells never activate, so peaks separated by voids end
// with ErrNotConnected. Cancellation is checked between elevation bands.
func KeyCol(ctx context.Context, r Raster, aLat, aLon, bLat, bLon float64, conn Connectivity) (Result, error) {
	switch conn {
	case 0:
		conn = Conn8
	case Conn4, Conn8:
	default:
		return Result{}, fmt.Errorf("saddle: connectivity %d not supported", conn)
	}
	offs := neigh4
	if conn == Conn8 {
		offs = neigh8
	}

	rows, cols := r.Dims()
	rowA, colA, ok := r.Index(aLat, aLon)
	if !ok {
		return Result{}, ErrOutside
	}
	rowB, colB, ok := r.Index(bLat, bLon)
	if !ok {
		return Result{}, ErrOutside
	}
	aIdx := int32(rowA*cols + colA)
	bIdx := int32(rowB*cols + colB)
	if aIdx == bIdx {
		return Result{}, ErrSameCell
	}
	va := r.Sample(rowA, colA)
	vb := r.Sample(rowB, colB)
	if va == hgt.VoidElevation || vb == hgt.VoidElevation {
		return Result{}, ErrVoidSummit
	}

	// сортировка подсчётом: 65536 корзин высоты, валидные клетки
	counts := make([]int32, 1<<16)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if v := r.Sample(row, col); v != hgt.VoidElevation {
				counts[int(v)-math.MinInt16]++
			}
		}
	}
	offsets := make([]int32, 1<<16)
	pos := int32(0)
	for k := len(counts) - 1; k >= 0; k-- {
		offsets[k] = pos
		pos += counts[k]
	}
	order := make([]int32, pos)
	fill := make([]int32, 1<<16)
	copy(fill, offsets)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			v := r.Sample(row, col)
			if v == hgt.VoidElevation {
				continue
			}
			k := int(v) - math.MinInt16
			order[fill[k]] = int32(row*cols + col)
			fill[k]++
		}
	}

	d := newDSU(rows * cols)
	for k := len(counts) - 1; k >= 0; k-- {
		if counts[k] == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		band := order[offsets[k] : offsets[k]+counts[k]]
		for _, ci := range band {
			var fl uint8
			if ci == aIdx {
				fl |= flagA
			}
			if ci == bIdx {
				fl |= flagB
			}
			d.activate(ci, fl)

			row := int(ci) / cols
			col := int(ci) % cols
			for _, o := range offs {
				nr, nc := row+o[0], col+o[1]
				if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
					continue
				}
				if ni := int32(nr*cols + nc); d.active(ni) {
					d.union(ci, ni)
				}
			}
			if d.flags[d.find(ci)] == flagA|flagB {
				lat, lon := r.LatLon(row, col)
				aSnapLat, aSnapLon := r.LatLon(rowA, colA)
				bSnapLat, bSnapLon := r.LatLon(rowB, colB)
				return Result{
					PeakA: Point{Lat: aSnapLat, Lon: aSnapLon, Elevation: va},
					PeakB: Point{Lat: bSnapLat, Lon: bSnapLon, Elevation: vb},
					Col:   Point{Lat: lat, Lon: lon, Elevation: r.Sample(row, col)},
				}, nil
			}
		}
	}
	return Result{}, ErrNotConnected
}
