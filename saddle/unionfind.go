package saddle

// dsu is a disjoint-set forest over raster cell indices. Cells start
// inactive; activating one makes a singleton set. Roots carry flag bits
// marking components that contain either summit cell.
type dsu struct {
	parent []int32 // -1 = клетка ещё не активирована
	size   []int32
	flags  []uint8
}

const (
	flagA uint8 = 1 << iota
	flagB
)

func newDSU(n int) *dsu {
	parent := make([]int32, n)
	for i := range parent {
		parent[i] = -1
	}
	return &dsu{
		parent: parent,
		size:   make([]int32, n),
		flags:  make([]uint8, n),
	}
}

func (d *dsu) active(i int32) bool { return d.parent[i] >= 0 }

func (d *dsu) activate(i int32, fl uint8) {
	d.parent[i] = i
	d.size[i] = 1
	d.flags[i] = fl
}

// find walks to the root with path halving.
func (d *dsu) find(i int32) int32 {
	for d.parent[i] != i {
		d.parent[i] = d.parent[d.parent[i]]
		i = d.parent[i]
	}
	return i
}

// union merges both sets by size and returns the surviving root. Flags of
// the losing root carry over.
func (d *dsu) union(a, b int32) int32 {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return ra
	}
	if d.size[ra] < d.size[rb] {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	d.size[ra] += d.size[rb]
	d.flags[ra] |= d.flags[rb]
	return ra
}
