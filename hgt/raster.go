package hgt

import "fmt"

// VoidElevation is the SRTM sentinel for cells the radar never resolved.
const VoidElevation int16 = -32768

// Resolution names the two published SRTM raster densities.
type Resolution uint8

const (
	ResolutionUnknown Resolution = iota
	SRTM3                        // 3 arc-seconds, 1201x1201 samples
	SRTM1                        // 1 arc-second, 3601x3601 samples
)

// SideLen returns the samples per raster side, 0 for unknown.
func (r Resolution) SideLen() int {
	switch r {
	case SRTM3:
		return 1201
	case SRTM1:
		return 3601
	}
	return 0
}

// ByteSize returns the exact payload size of an HGT file at this resolution.
func (r Resolution) ByteSize() int64 {
	side := int64(r.SideLen())
	return side * side * 2
}

func (r Resolution) String() string {
	switch r {
	case SRTM3:
		return "srtm3"
	case SRTM1:
		return "srtm1"
	}
	return "unknown"
}

// ParseResolution reads the names produced by String.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "srtm1":
		return SRTM1, nil
	case "srtm3":
		return SRTM3, nil
	}
	return ResolutionUnknown, fmt.Errorf("hgt: unknown resolution %q", s)
}

// ResolutionForSize maps an exact payload size to its resolution. Any other
// size, including truncated or padded files, is ResolutionUnknown.
func ResolutionForSize(n int64) Resolution {
	switch n {
	case SRTM3.ByteSize():
		return SRTM3
	case SRTM1.ByteSize():
		return SRTM1
	}
	return ResolutionUnknown
}

// Raster holds the decoded samples of one tile. Rows run north to south and
// columns west to east, exactly as stored in the file; index 0 is the
// north-west corner. Samples are immutable after decoding.
type Raster struct {
	res     Resolution
	samples []int16
}

// DecodeRaster decodes a raw HGT payload. The payload length must match one
// of the two known raster sizes exactly; anything else is an error the
// caller treats as a corrupt file.
func DecodeRaster(data []byte) (*Raster, error) {
	res := ResolutionForSize(int64(len(data)))
	if res == ResolutionUnknown {
		return nil, fmt.Errorf("hgt: payload of %d bytes matches no known raster size", len(data))
	}
	side := res.SideLen()
	samples := make([]int16, side*side)
	// big-endian int16, как лежит в файле
	for i := range samples {
		samples[i] = int16(uint16(data[2*i])<<8 | uint16(data[2*i+1]))
	}
	return &Raster{res: res, samples: samples}, nil
}

// Res returns the raster's resolution.
func (r *Raster) Res() Resolution { return r.res }

// Side returns samples per side.
func (r *Raster) Side() int { return r.res.SideLen() }

// At returns the sample at (row, col), row 0 northernmost, col 0
// westernmost. Out-of-range indexes read as void.
func (r *Raster) At(row, col int) int16 {
	side := r.res.SideLen()
	if row < 0 || col < 0 || row >= side || col >= side {
		return VoidElevation
	}
	return r.samples[row*side+col]
}
