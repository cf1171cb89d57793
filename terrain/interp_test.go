package terrain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/pavletto/terrainer/hgt"
	"github.com/pavletto/terrainer/terrain"
)

func TestLinear(t *testing.T) {
	tests := []struct {
		name              string
		x0, v0, x1, v1, x float64
		want              float64
		wantErr           error
	}{
		{name: "midpoint", x0: 0, v0: 100, x1: 10, v1: 200, x: 5, want: 150},
		{name: "at start", x0: 0, v0: 100, x1: 10, v1: 200, x: 0, want: 100},
		{name: "at end", x0: 0, v0: 100, x1: 10, v1: 200, x: 10, want: 200},
		{name: "descending axis", x0: 10, v0: 200, x1: 0, v1: 100, x: 5, want: 150},
		{name: "negative values", x0: -2, v0: -10, x1: 2, v1: 10, x: 0, want: 0},
		{name: "void left", x0: 0, v0: float64(hgt.VoidElevation), x1: 1, v1: 5, x: 0.5, wantErr: terrain.ErrVoidValue},
		{name: "void right", x0: 0, v0: 5, x1: 1, v1: float64(hgt.VoidElevation), x: 0.5, wantErr: terrain.ErrVoidValue},
		{name: "outside segment", x0: 0, v0: 0, x1: 1, v1: 1, x: 1.5, wantErr: terrain.ErrOutsideRect},
		{name: "degenerate", x0: 3, v0: 0, x1: 3, v1: 1, x: 3, wantErr: terrain.ErrDegenerateRect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := terrain.Linear(tt.x0, tt.v0, tt.x1, tt.v1, tt.x)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Linear() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Linear() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Linear() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBilinear(t *testing.T) {
	r := terrain.Rect{
		X0: 0, X1: 2, Y0: 0, Y1: 1,
		V00: 0, V10: 4, V01: 10, V11: 2,
	}
	tests := []struct {
		name    string
		x, y    float64
		want    float64
		wantErr error
	}{
		{name: "center", x: 1, y: 0.5, want: 4},
		{name: "corner v00", x: 0, y: 0, want: 0},
		{name: "corner v11", x: 2, y: 1, want: 2},
		{name: "x edge", x: 1, y: 0, want: 2},
		{name: "y edge", x: 0, y: 0.5, want: 5},
		{name: "outside", x: 3, y: 0.5, wantErr: terrain.ErrOutsideRect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := terrain.Bilinear(r, tt.x, tt.y)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Bilinear() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Bilinear() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Bilinear() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBilinearRejectsBadRect(t *testing.T) {
	void := float64(hgt.VoidElevation)

	r := terrain.Rect{X0: 0, X1: 1, Y0: 0, Y1: 1, V00: void, V10: 1, V01: 1, V11: 1}
	if _, err := terrain.Bilinear(r, 0.5, 0.5); !errors.Is(err, terrain.ErrVoidValue) {
		t.Errorf("void corner: error = %v, want ErrVoidValue", err)
	}

	r = terrain.Rect{X0: 1, X1: 1, Y0: 0, Y1: 1, V00: 1, V10: 1, V01: 1, V11: 1}
	if _, err := terrain.Bilinear(r, 1, 0.5); !errors.Is(err, terrain.ErrDegenerateRect) {
		t.Errorf("collapsed axis: error = %v, want ErrDegenerateRect", err)
	}
}
