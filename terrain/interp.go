package terrain

import (
	"errors"

	"github.com/pavletto/terrainer/hgt"
)

// Interpolation rejects bad inputs loudly instead of guessing: a void
// corner, a point outside the rectangle or a collapsed axis is a caller
// bug, not something to paper over with a fallback value.
var (
	ErrVoidValue      = errors.New("terrain: void value at interpolation corner")
	ErrOutsideRect    = errors.New("terrain: point outside interpolation rectangle")
	ErrDegenerateRect = errors.New("terrain: degenerate interpolation rectangle")
)

// Linear interpolates between (x0, v0) and (x1, v1) at x. The segment may
// run in either direction but must have nonzero length and x must lie on it.
func Linear(x0, v0, x1, v1, x float64) (float64, error) {
	if isVoid(v0) || isVoid(v1) {
		return 0, ErrVoidValue
	}
	if x1 == x0 {
		return 0, ErrDegenerateRect
	}
	t := (x - x0) / (x1 - x0)
	if t < 0 || t > 1 {
		return 0, ErrOutsideRect
	}
	return v0 + t*(v1-v0), nil
}

// Rect is an axis-aligned interpolation rectangle with one value per
// corner. Vij is the value at (Xi, Yj): V00 at (X0, Y0), V10 at (X1, Y0),
// V01 at (X0, Y1), V11 at (X1, Y1). Axis direction does not matter, the
// rectangle may be irregular in both extents.
type Rect struct {
	X0, X1, Y0, Y1     float64
	V00, V10, V01, V11 float64
}

// Bilinear interpolates the rectangle's corner values at (x, y).
func Bilinear(r Rect, x, y float64) (float64, error) {
	if isVoid(r.V00) || isVoid(r.V10) || isVoid(r.V01) || isVoid(r.V11) {
		return 0, ErrVoidValue
	}
	if r.X0 == r.X1 || r.Y0 == r.Y1 {
		return 0, ErrDegenerateRect
	}
	fx := (x - r.X0) / (r.X1 - r.X0)
	fy := (y - r.Y0) / (r.Y1 - r.Y0)
	if fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		return 0, ErrOutsideRect
	}
	a := r.V00*(1-fx) + r.V10*fx
	b := r.V01*(1-fx) + r.V11*fx
	return a*(1-fy) + b*fy, nil
}

func isVoid(v float64) bool {
	return v == float64(hgt.VoidElevation)
}
