package saddle

import (
	"context"
	"math"

	"github.com/umahmood/haversine"

	"github.com/pavletto/terrainer/hgt"
)

// IsolationResult carries the nearest strictly higher sample and the
// great-circle distance to it.
type IsolationResult struct {
	Origin     Point
	Nearest    Point
	DistanceKm float64
}

// Isolation finds the closest raster sample strictly higher than the
// sample under the given point. Rows are scanned outward from the origin
// and a row is skipped entirely once even its pure latitude separation
// exceeds the best distance so far. ErrHighestPoint reports a point with
// no higher ground anywhere in the raster.
func Isolation(ctx context.Context, r Raster, lat, lon float64) (IsolationResult, error) {
	rows, cols := r.Dims()
	row0, col0, ok := r.Index(lat, lon)
	if !ok {
		return IsolationResult{}, ErrOutside
	}
	v0 := r.Sample(row0, col0)
	if v0 == hgt.VoidElevation {
		return IsolationResult{}, ErrVoidSummit
	}
	origin := haversine.Coord{Lat: lat, Lon: lon}

	best := math.MaxFloat64
	bestRow, bestCol := -1, -1

	scanRow := func(row int) {
		for col := 0; col < cols; col++ {
			v := r.Sample(row, col)
			if v == hgt.VoidElevation || v <= v0 {
				continue
			}
			cellLat, cellLon := r.LatLon(row, col)
			_, km := haversine.Distance(origin, haversine.Coord{Lat: cellLat, Lon: cellLon})
			if km < best {
				best = km
				bestRow, bestCol = row, col
			}
		}
	}
	// rowFloor is the smallest possible distance to any cell of the row
	rowFloor := func(row int) float64 {
		rowLat, _ := r.LatLon(row, col0)
		_, km := haversine.Distance(origin, haversine.Coord{Lat: rowLat, Lon: lon})
		return km
	}

	doneUp, doneDown := false, false
	for d := 0; !doneUp || !doneDown; d++ {
		select {
		case <-ctx.Done():
			return IsolationResult{}, ctx.Err()
		default:
		}
		if !doneUp {
			row := row0 - d
			switch {
			case row < 0:
				doneUp = true
			case bestRow >= 0 && rowFloor(row) > best:
				doneUp = true
			default:
				scanRow(row)
			}
		}
		if d > 0 && !doneDown {
			row := row0 + d
			switch {
			case row >= rows:
				doneDown = true
			case bestRow >= 0 && rowFloor(row) > best:
				doneDown = true
			default:
				scanRow(row)
			}
		}
	}
	if bestRow < 0 {
		return IsolationResult{}, ErrHighestPoint
	}

	nLat, nLon := r.LatLon(bestRow, bestCol)
	return IsolationResult{
		Origin:     Point{Lat: lat, Lon: lon, Elevation: v0},
		Nearest:    Point{Lat: nLat, Lon: nLon, Elevation: r.Sample(bestRow, bestCol)},
		DistanceKm: best,
	}, nil
}
