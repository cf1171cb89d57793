// Package hgt implements naming, decoding and index math for SRTM HGT
// elevation tiles: one degree square per file, big-endian int16 samples.
package hgt

import (
	"fmt"
	"math"
)

// TileID identifies one degree square of elevation data by the floored
// integer degrees of its south-west corner.
type TileID struct {
	LatDeg int // широта юго-западного угла, floor(lat)
	LonDeg int // долгота юго-западного угла, floor(lon)
}

// TileIDOf returns the tile containing the coordinate. Points exactly on a
// degree line belong to the tile whose corner they name, so lat 37.0 is in
// N37, not N36.
func TileIDOf(lat, lon float64) TileID {
	return TileID{
		LatDeg: int(math.Floor(lat)),
		LonDeg: int(math.Floor(lon)),
	}
}

// String formats the ID the way SRTM files are named: hemisphere letter plus
// zero-padded degrees, N/S + 2 digits, E/W + 3 digits. Example: lat=-3.2
// floors to -4 and formats as S04.
func (id TileID) String() string {
	ns, lat := byte('N'), id.LatDeg
	if lat < 0 {
		ns, lat = 'S', -lat
	}
	ew, lon := byte('E'), id.LonDeg
	if lon < 0 {
		ew, lon = 'W', -lon
	}
	return fmt.Sprintf("%c%02d%c%03d", ns, lat, ew, lon)
}

// ParseTileID inverts String. It accepts exactly the 7-character form
// produced there and rejects everything else.
func ParseTileID(s string) (TileID, error) {
	if len(s) != 7 {
		return TileID{}, fmt.Errorf("hgt: tile id %q: want 7 characters", s)
	}
	var id TileID

	lat, err := parseDegrees(s[1:3])
	if err != nil {
		return TileID{}, fmt.Errorf("hgt: tile id %q: %w", s, err)
	}
	switch s[0] {
	case 'N':
		id.LatDeg = lat
	case 'S':
		id.LatDeg = -lat
	default:
		return TileID{}, fmt.Errorf("hgt: tile id %q: want N or S, got %q", s, s[0])
	}

	lon, err := parseDegrees(s[4:7])
	if err != nil {
		return TileID{}, fmt.Errorf("hgt: tile id %q: %w", s, err)
	}
	switch s[3] {
	case 'E':
		id.LonDeg = lon
	case 'W':
		id.LonDeg = -lon
	default:
		return TileID{}, fmt.Errorf("hgt: tile id %q: want E or W, got %q", s, s[3])
	}

	if id.LatDeg < -90 || id.LatDeg > 89 {
		return TileID{}, fmt.Errorf("hgt: tile id %q: latitude out of range", s)
	}
	if id.LonDeg < -180 || id.LonDeg > 179 {
		return TileID{}, fmt.Errorf("hgt: tile id %q: longitude out of range", s)
	}
	return id, nil
}

func parseDegrees(s string) (int, error) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("bad degree digits %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// Bounds returns the geographic extent of the tile.
func (id TileID) Bounds() (south, west, north, east float64) {
	return float64(id.LatDeg), float64(id.LonDeg),
		float64(id.LatDeg) + 1, float64(id.LonDeg) + 1
}

// Contains reports whether the coordinate falls inside this tile under the
// floor convention.
func (id TileID) Contains(lat, lon float64) bool {
	return TileIDOf(lat, lon) == id
}
