package contour

import "github.com/paulmach/orb"

// Join chains cell segments into polylines by matching shared endpoints.
// Segments are undirected; each polyline grows from both ends until no
// unused segment touches it. Closed rings come back with the first point
// repeated at the end.
func Join(segments []Segment) []orb.LineString {
	if len(segments) == 0 {
		return nil
	}

	adj := make(map[orb.Point][]int, len(segments))
	for i, s := range segments {
		adj[s.A] = append(adj[s.A], i)
		adj[s.B] = append(adj[s.B], i)
	}
	used := make([]bool, len(segments))

	takeAt := func(p orb.Point) (int, bool) {
		for _, j := range adj[p] {
			if !used[j] {
				used[j] = true
				return j, true
			}
		}
		return 0, false
	}
	other := func(i int, p orb.Point) orb.Point {
		if segments[i].A == p {
			return segments[i].B
		}
		return segments[i].A
	}

	var lines []orb.LineString
	for i := range segments {
		if used[i] {
			continue
		}
		used[i] = true
		line := orb.LineString{segments[i].A, segments[i].B}

		for {
			j, ok := takeAt(line[len(line)-1])
			if !ok {
				break
			}
			line = append(line, other(j, line[len(line)-1]))
		}
		for {
			j, ok := takeAt(line[0])
			if !ok {
				break
			}
			line = append(orb.LineString{other(j, line[0])}, line...)
		}
		lines = append(lines, line)
	}
	return lines
}
