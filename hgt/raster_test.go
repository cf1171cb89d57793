package hgt_test

import (
	"testing"

	"github.com/pavletto/terrainer/hgt"
)

func TestResolutionForSize(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want hgt.Resolution
	}{
		{"srtm3", 1201 * 1201 * 2, hgt.SRTM3},
		{"srtm1", 3601 * 3601 * 2, hgt.SRTM1},
		{"truncated", 1201*1201*2 - 2, hgt.ResolutionUnknown},
		{"padded", 1201*1201*2 + 2, hgt.ResolutionUnknown},
		{"empty", 0, hgt.ResolutionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hgt.ResolutionForSize(tt.n); got != tt.want {
				t.Errorf("ResolutionForSize(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestParseResolution(t *testing.T) {
	for _, res := range []hgt.Resolution{hgt.SRTM1, hgt.SRTM3} {
		got, err := hgt.ParseResolution(res.String())
		if err != nil {
			t.Fatalf("ParseResolution(%q) error: %v", res.String(), err)
		}
		if got != res {
			t.Errorf("ParseResolution(%q) = %v, want %v", res.String(), got, res)
		}
	}
	if _, err := hgt.ParseResolution("srtm9"); err == nil {
		t.Error("ParseResolution(srtm9) = nil error, want error")
	}
}

// putSample writes v big-endian at sample index i.
func putSample(data []byte, i int, v int16) {
	data[2*i] = byte(uint16(v) >> 8)
	data[2*i+1] = byte(uint16(v))
}

func TestDecodeRaster(t *testing.T) {
	side := hgt.SRTM3.SideLen()
	data := make([]byte, hgt.SRTM3.ByteSize())
	putSample(data, 0, 100)                  // north-west corner
	putSample(data, side-1, -17)             // north-east corner
	putSample(data, 1*side+1, hgt.VoidElevation)
	putSample(data, side*side-1, 8848)       // south-east corner

	r, err := hgt.DecodeRaster(data)
	if err != nil {
		t.Fatalf("DecodeRaster error: %v", err)
	}
	if r.Res() != hgt.SRTM3 {
		t.Errorf("Res() = %v, want %v", r.Res(), hgt.SRTM3)
	}
	if got := r.At(0, 0); got != 100 {
		t.Errorf("At(0,0) = %d, want 100", got)
	}
	if got := r.At(0, side-1); got != -17 {
		t.Errorf("At(0,%d) = %d, want -17", side-1, got)
	}
	if got := r.At(1, 1); got != hgt.VoidElevation {
		t.Errorf("At(1,1) = %d, want void", got)
	}
	if got := r.At(side-1, side-1); got != 8848 {
		t.Errorf("At(%d,%d) = %d, want 8848", side-1, side-1, got)
	}
}

func TestDecodeRasterBadSize(t *testing.T) {
	if _, err := hgt.DecodeRaster(make([]byte, 1000)); err == nil {
		t.Error("DecodeRaster(1000 bytes) = nil error, want error")
	}
	if _, err := hgt.DecodeRaster(nil); err == nil {
		t.Error("DecodeRaster(nil) = nil error, want error")
	}
}

func TestRasterAtOutOfRange(t *testing.T) {
	data := make([]byte, hgt.SRTM3.ByteSize())
	r, err := hgt.DecodeRaster(data)
	if err != nil {
		t.Fatalf("DecodeRaster error: %v", err)
	}
	for _, rc := range [][2]int{{-1, 0}, {0, -1}, {1201, 0}, {0, 1201}} {
		if got := r.At(rc[0], rc[1]); got != hgt.VoidElevation {
			t.Errorf("At(%d,%d) = %d, want void", rc[0], rc[1], got)
		}
	}
}
