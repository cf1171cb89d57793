// Package hillshade renders shaded relief from an elevation raster with
// the classic Horn slope/aspect estimate and a single light source.
package hillshade

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"

	"github.com/umahmood/haversine"
	"golang.org/x/sync/errgroup"

	"github.com/pavletto/terrainer/hgt"
)

// ErrRasterTooSmall reports a raster without interior cells; the 3x3
// window needs at least three rows and columns.
var ErrRasterTooSmall = errors.New("hillshade: raster too small")

// Raster is the sample source. Row 0 is the northern edge and cells are
// square in degrees.
type Raster interface {
	Dims() (rows, cols int)
	Sample(row, col int) int16
	CellDeg() float64
	Bounds() (south, west, north, east float64)
}

// Options positions the light source. Zero values take the cartographic
// defaults: sun at 45 degrees over the horizon from the northwest.
type Options struct {
	AltitudeDeg float64 // высота солнца (0, 90]
	AzimuthDeg  float64 // азимут по компасу [0, 360)
	ZFactor     float64 // вертикальное преувеличение, 0 = 1
}

// Render shades the raster interior. The output is (rows-2) x (cols-2):
// border cells have no full 3x3 window and are dropped rather than faked.
// Cells whose window touches a void sample come out black. Rows render in
// parallel; cancellation abandons the whole image.
func Render(ctx context.Context, r Raster, opts Options) (*image.Gray, error) {
	rows, cols := r.Dims()
	if rows < 3 || cols < 3 {
		return nil, ErrRasterTooSmall
	}
	if opts.AltitudeDeg == 0 {
		opts.AltitudeDeg = 45
	}
	if opts.AzimuthDeg == 0 {
		opts.AzimuthDeg = 315
	}
	if opts.ZFactor == 0 {
		opts.ZFactor = 1
	}
	if opts.AltitudeDeg < 0 || opts.AltitudeDeg > 90 {
		return nil, fmt.Errorf("hillshade: altitude %v out of range", opts.AltitudeDeg)
	}
	if opts.AzimuthDeg < 0 || opts.AzimuthDeg >= 360 {
		return nil, fmt.Errorf("hillshade: azimuth %v out of range", opts.AzimuthDeg)
	}

	zenith := (90 - opts.AltitudeDeg) * math.Pi / 180
	azimuth := 360 - opts.AzimuthDeg + 90
	if azimuth >= 360 {
		azimuth -= 360
	}
	azimuthRad := azimuth * math.Pi / 180
	cosZenith, sinZenith := math.Cos(zenith), math.Sin(zenith)

	// шаг сетки в метрах по каждой оси на средней широте области
	south, west, north, _ := r.Bounds()
	meanLat := (south + north) / 2
	_, kmLon := haversine.Distance(
		haversine.Coord{Lat: meanLat, Lon: west},
		haversine.Coord{Lat: meanLat, Lon: west + 1})
	_, kmLat := haversine.Distance(
		haversine.Coord{Lat: meanLat - 0.5, Lon: west},
		haversine.Coord{Lat: meanLat + 0.5, Lon: west})
	cellX := r.CellDeg() * kmLon * 1000
	cellY := r.CellDeg() * kmLat * 1000

	w, h := cols-2, rows-2
	img := image.NewGray(image.Rect(0, 0, w, h))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < h; y++ {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			shadeRow(r, img, y, cellX, cellY, opts.ZFactor, cosZenith, sinZenith, azimuthRad)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}

func shadeRow(r Raster, img *image.Gray, y int, cellX, cellY, zf, cosZenith, sinZenith, azimuthRad float64) {
	_, cols := r.Dims()
	row := y + 1
	for col := 1; col < cols-1; col++ {
		var win [9]float64
		void := false
		for dr := -1; dr <= 1 && !void; dr++ {
			for dc := -1; dc <= 1; dc++ {
				v := r.Sample(row+dr, col+dc)
				if v == hgt.VoidElevation {
					void = true
					break
				}
				win[(dr+1)*3+dc+1] = float64(v)
			}
		}
		if void {
			img.Pix[y*img.Stride+col-1] = 0
			continue
		}

		// окно Horn: a b c / d e f / g h i
		a, b, c := win[0], win[1], win[2]
		d, f := win[3], win[5]
		g, hh, i := win[6], win[7], win[8]

		dzdx := ((c + 2*f + i) - (a + 2*d + g)) / (8 * cellX)
		dzdy := ((g + 2*hh + i) - (a + 2*b + c)) / (8 * cellY)

		slope := math.Atan(zf * math.Hypot(dzdx, dzdy))
		var aspect float64
		if dzdx != 0 {
			aspect = math.Atan2(dzdy, -dzdx)
			if aspect < 0 {
				aspect += 2 * math.Pi
			}
		} else if dzdy > 0 {
			aspect = math.Pi / 2
		} else if dzdy < 0 {
			aspect = 2*math.Pi - math.Pi/2
		}

		shade := 255 * (cosZenith*math.Cos(slope) + sinZenith*math.Sin(slope)*math.Cos(azimuthRad-aspect))
		switch {
		case shade < 0:
			shade = 0
		case shade > 255:
			shade = 255
		}
		img.Pix[y*img.Stride+col-1] = uint8(math.Round(shade))
	}
}
