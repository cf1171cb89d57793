package hillshade_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pavletto/terrainer/hgt"
	"github.com/pavletto/terrainer/hillshade"
)

type shadeStub struct {
	vals  [][]int16
	south float64
	west  float64
	cell  float64
}

func (s *shadeStub) Dims() (int, int) { return len(s.vals), len(s.vals[0]) }

func (s *shadeStub) Sample(row, col int) int16 { return s.vals[row][col] }

func (s *shadeStub) CellDeg() float64 { return s.cell }

func (s *shadeStub) Bounds() (float64, float64, float64, float64) {
	rows, cols := s.Dims()
	return s.south, s.west,
		s.south + float64(rows-1)*s.cell,
		s.west + float64(cols-1)*s.cell
}

func flatStub(rows, cols int, v int16) *shadeStub {
	vals := make([][]int16, rows)
	for r := range vals {
		vals[r] = make([]int16, cols)
		for c := range vals[r] {
			vals[r][c] = v
		}
	}
	return &shadeStub{vals: vals, south: 0, west: 0, cell: 1.0 / 1200}
}

func TestRenderFlat(t *testing.T) {
	img, err := hillshade.Render(context.Background(), flatStub(5, 5, 500), hillshade.Options{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 3 || b.Dy() != 3 {
		t.Fatalf("Render() image %dx%d, want 3x3", b.Dx(), b.Dy())
	}
	// ровная поверхность: 255*cos(45) = 180 везде
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if got := img.GrayAt(x, y).Y; got != 180 {
				t.Errorf("pixel (%d,%d) = %d, want 180", x, y, got)
			}
		}
	}
}

func TestRenderVoidWindow(t *testing.T) {
	s := flatStub(4, 4, 500)
	s.vals[0][0] = hgt.VoidElevation

	img, err := hillshade.Render(context.Background(), s, hillshade.Options{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := img.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("pixel touching void = %d, want 0", got)
	}
	if got := img.GrayAt(1, 1).Y; got != 180 {
		t.Errorf("pixel clear of void = %d, want 180", got)
	}
}

func TestRenderSlopeDirection(t *testing.T) {
	// склон поднимается на восток, обращён на запад
	ramp := flatStub(5, 5, 0)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			ramp.vals[r][c] = int16(100 * c)
		}
	}

	west, err := hillshade.Render(context.Background(), ramp, hillshade.Options{AzimuthDeg: 270})
	if err != nil {
		t.Fatalf("Render(azimuth=270) error = %v", err)
	}
	east, err := hillshade.Render(context.Background(), ramp, hillshade.Options{AzimuthDeg: 90})
	if err != nil {
		t.Fatalf("Render(azimuth=90) error = %v", err)
	}

	lit := west.GrayAt(1, 1).Y
	dark := east.GrayAt(1, 1).Y
	if lit <= 180 {
		t.Errorf("west-lit west-facing slope = %d, want > 180", lit)
	}
	if dark >= 180 {
		t.Errorf("east-lit west-facing slope = %d, want < 180", dark)
	}
}

func TestRenderTooSmall(t *testing.T) {
	_, err := hillshade.Render(context.Background(), flatStub(2, 5, 0), hillshade.Options{})
	if !errors.Is(err, hillshade.ErrRasterTooSmall) {
		t.Errorf("Render() error = %v, want ErrRasterTooSmall", err)
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := hillshade.Render(ctx, flatStub(5, 5, 0), hillshade.Options{}); err == nil {
		t.Error("Render() with cancelled context returned nil error")
	}
}
