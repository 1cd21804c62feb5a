package cadmesh

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

// DefaultTargetTriangles bounds the triangle count of meshes sent to the
// browser viewer.
const DefaultTargetTriangles = 500

const boundaryWeight = 1000.0

// maxLooseComponentFaces bounds the components the final pass may remove
// whole; tetrahedra and lone triangles have no legal collapse.
const maxLooseComponentFaces = 4

var errSimplifyStalled = errors.New("no valid edge collapse left")

// Simplify reduces mesh to at most target triangles by quadric error edge
// collapse. Meshes already within budget are returned as is. When
// decimation fails the input mesh is returned together with the reason;
// the returned mesh is always usable.
func Simplify(mesh *Mesh, target int) (out *Mesh, err error) {
	if mesh.TriangleCount() <= target {
		return mesh, nil
	}
	if target <= 0 {
		return mesh, fmt.Errorf("simplify: invalid target %d", target)
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = mesh, fmt.Errorf("simplify: %v", r)
		}
	}()

	d := newDecimator(mesh.Weld())
	if d.live <= target {
		return d.result(), nil
	}
	d.run(target, true)
	if d.live > target {
		// Flip protection can leave a mesh stuck above budget; retry
		// with only the topological checks.
		d.run(target, false)
	}
	if d.live > target {
		d.dropLooseComponents(target)
	}
	if d.live > target {
		return mesh, fmt.Errorf("simplify: %w at %d triangles", errSimplifyStalled, d.live)
	}
	res := d.result()
	if res.TriangleCount() == 0 {
		return mesh, errors.New("simplify: decimation produced an empty mesh")
	}
	return res, nil
}

type edgeEntry struct {
	cost   float64
	a, b   uint32
	va, vb uint32
	pos    vec3d.T
}

type edgeHeap []edgeEntry

func (h edgeHeap) Len() int            { return len(h) }
func (h edgeHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h edgeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *edgeHeap) Push(x interface{}) { *h = append(*h, x.(edgeEntry)) }
func (h *edgeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

type decimator struct {
	pos      []vec3d.T
	q        []quadric
	faces    [][3]uint32
	faceDead []bool
	vfaces   [][]int
	vertDead []bool
	version  []uint32
	heap     edgeHeap
	live     int
	areaEps  float64
}

func newDecimator(m *Mesh) *decimator {
	d := &decimator{
		pos:      append([]vec3d.T(nil), m.Vertices...),
		q:        make([]quadric, len(m.Vertices)),
		faces:    append([][3]uint32(nil), m.Faces...),
		faceDead: make([]bool, len(m.Faces)),
		vfaces:   make([][]int, len(m.Vertices)),
		vertDead: make([]bool, len(m.Vertices)),
		version:  make([]uint32, len(m.Vertices)),
		live:     len(m.Faces),
	}

	if box, ok := m.Bounds(); ok {
		diag := vec3d.Sub(&box.Max, &box.Min)
		l := diag.Length()
		d.areaEps = 1e-12 * l * l
	}

	edgeUse := make(map[[2]uint32]int)
	for fi, f := range d.faces {
		for _, v := range f {
			d.vfaces[v] = append(d.vfaces[v], fi)
		}
		cross := faceCross(&d.pos[f[0]], &d.pos[f[1]], &d.pos[f[2]])
		l := cross.Length()
		if l > 0 {
			n := vec3d.T{cross[0] / l, cross[1] / l, cross[2] / l}
			pq := planeQuadric(&n, -vec3d.Dot(&n, &d.pos[f[0]]), l/2)
			for _, v := range f {
				d.q[v].add(&pq)
			}
		}
		for k := 0; k < 3; k++ {
			edgeUse[edgeKey(f[k], f[(k+1)%3])]++
		}
	}

	// Penalize moving boundary vertices off the plane perpendicular to
	// the open edge so silhouettes survive.
	for _, f := range d.faces {
		cross := faceCross(&d.pos[f[0]], &d.pos[f[1]], &d.pos[f[2]])
		if cross.Length() == 0 {
			continue
		}
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if edgeUse[edgeKey(a, b)] != 1 {
				continue
			}
			e := vec3d.Sub(&d.pos[b], &d.pos[a])
			bn := vec3d.Cross(&e, &cross)
			bl := bn.Length()
			if bl == 0 {
				continue
			}
			bn = vec3d.T{bn[0] / bl, bn[1] / bl, bn[2] / bl}
			el := e.Length()
			pq := planeQuadric(&bn, -vec3d.Dot(&bn, &d.pos[a]), boundaryWeight*el*el)
			d.q[a].add(&pq)
			d.q[b].add(&pq)
		}
	}

	d.rebuildHeap()
	return d
}

func edgeKey(a, b uint32) [2]uint32 {
	if a > b {
		a, b = b, a
	}
	return [2]uint32{a, b}
}

func (d *decimator) rebuildHeap() {
	d.heap = d.heap[:0]
	seen := make(map[[2]uint32]bool)
	for fi, f := range d.faces {
		if d.faceDead[fi] {
			continue
		}
		for k := 0; k < 3; k++ {
			key := edgeKey(f[k], f[(k+1)%3])
			if seen[key] {
				continue
			}
			seen[key] = true
			d.heap = append(d.heap, d.edge(key[0], key[1]))
		}
	}
	heap.Init(&d.heap)
}

// edge computes the collapse target and cost for edge (a, b).
func (d *decimator) edge(a, b uint32) edgeEntry {
	q := d.q[a].plus(d.q[b])
	pa, pb := d.pos[a], d.pos[b]
	mid := vec3d.T{(pa[0] + pb[0]) / 2, (pa[1] + pb[1]) / 2, (pa[2] + pb[2]) / 2}

	best := mid
	cost := q.eval(&mid)
	for _, c := range []vec3d.T{pa, pb} {
		if e := q.eval(&c); e < cost {
			best, cost = c, e
		}
	}
	if opt, ok := q.optimal(); ok {
		span := vec3d.Sub(&pb, &pa)
		off := vec3d.Sub(&opt, &mid)
		if off.Length() <= 2*span.Length() {
			if e := q.eval(&opt); e <= cost {
				best, cost = opt, e
			}
		}
	}
	if cost < 0 {
		cost = 0
	}
	return edgeEntry{cost: cost, a: a, b: b, va: d.version[a], vb: d.version[b], pos: best}
}

func (d *decimator) run(target int, strict bool) {
	if !strict {
		d.rebuildHeap()
	}
	for d.live > target && d.heap.Len() > 0 {
		e := heap.Pop(&d.heap).(edgeEntry)
		if d.vertDead[e.a] || d.vertDead[e.b] || d.version[e.a] != e.va || d.version[e.b] != e.vb {
			continue
		}
		if !d.canCollapse(e.a, e.b, &e.pos, strict) {
			continue
		}
		d.collapse(e.a, e.b, e.pos)
	}
}

// liveFaces drops dead entries from v's incidence list and returns it.
func (d *decimator) liveFaces(v uint32) []int {
	fs := d.vfaces[v][:0]
	for _, fi := range d.vfaces[v] {
		if !d.faceDead[fi] {
			fs = append(fs, fi)
		}
	}
	d.vfaces[v] = fs
	return fs
}

func (d *decimator) neighbors(v uint32) map[uint32]int {
	n := make(map[uint32]int)
	for _, fi := range d.liveFaces(v) {
		for _, u := range d.faces[fi] {
			if u != v {
				n[u]++
			}
		}
	}
	return n
}

func isBoundaryVertex(n map[uint32]int) bool {
	for _, c := range n {
		if c == 1 {
			return true
		}
	}
	return false
}

func (d *decimator) canCollapse(a, b uint32, p *vec3d.T, strict bool) bool {
	na, nb := d.neighbors(a), d.neighbors(b)
	shared := na[b]
	if shared == 0 || shared > 2 {
		return false
	}

	// Link condition: the only common neighbours may be the apexes of
	// the faces being removed.
	common := 0
	for u := range na {
		if u != b {
			if _, ok := nb[u]; ok {
				common++
			}
		}
	}
	if common != shared {
		return false
	}
	if shared == 2 && isBoundaryVertex(na) && isBoundaryVertex(nb) {
		return false
	}
	union := len(na)
	for u := range nb {
		if _, ok := na[u]; !ok {
			union++
		}
	}
	// union counts a and b themselves once each.
	if union-2 < 3 {
		return false
	}

	for _, v := range [2]uint32{a, b} {
		for _, fi := range d.vfaces[v] {
			f := d.faces[fi]
			if hasVertex(f, a) && hasVertex(f, b) {
				continue
			}
			var moved [3]vec3d.T
			for k, u := range f {
				if u == a || u == b {
					moved[k] = *p
				} else {
					moved[k] = d.pos[u]
				}
			}
			after := faceCross(&moved[0], &moved[1], &moved[2])
			al := after.Length()
			if al <= d.areaEps || math.IsNaN(al) {
				return false
			}
			if strict {
				before := faceCross(&d.pos[f[0]], &d.pos[f[1]], &d.pos[f[2]])
				if vec3d.Dot(&before, &after) <= 0 {
					return false
				}
			}
		}
	}
	return true
}

func hasVertex(f [3]uint32, v uint32) bool {
	return f[0] == v || f[1] == v || f[2] == v
}

// collapse merges b into a and moves a to p.
func (d *decimator) collapse(a, b uint32, p vec3d.T) {
	d.pos[a] = p
	d.q[a].add(&d.q[b])
	d.vertDead[b] = true

	for _, fi := range d.liveFaces(b) {
		f := &d.faces[fi]
		if hasVertex(*f, a) {
			d.faceDead[fi] = true
			d.live--
			continue
		}
		for k := range f {
			if f[k] == b {
				f[k] = a
			}
		}
		d.vfaces[a] = append(d.vfaces[a], fi)
	}
	d.vfaces[b] = nil
	d.version[a]++

	for u := range d.neighbors(a) {
		heap.Push(&d.heap, d.edge(a, u))
	}
}

type looseComponent struct {
	faces []int
	area  float64
}

// dropLooseComponents removes connected components of at most
// maxLooseComponentFaces faces, smallest area first, until the budget is met.
// The last surviving faces are never removed.
func (d *decimator) dropLooseComponents(target int) {
	parent := make([]uint32, len(d.pos))
	for i := range parent {
		parent[i] = uint32(i)
	}
	find := func(v uint32) uint32 {
		for parent[v] != v {
			parent[v] = parent[parent[v]]
			v = parent[v]
		}
		return v
	}
	for fi, f := range d.faces {
		if d.faceDead[fi] {
			continue
		}
		root := find(f[0])
		for _, v := range f[1:] {
			if r := find(v); r != root {
				parent[r] = root
			}
		}
	}

	byRoot := make(map[uint32]*looseComponent)
	var comps []*looseComponent
	for fi, f := range d.faces {
		if d.faceDead[fi] {
			continue
		}
		root := find(f[0])
		c, ok := byRoot[root]
		if !ok {
			c = &looseComponent{}
			byRoot[root] = c
			comps = append(comps, c)
		}
		c.faces = append(c.faces, fi)
		cross := faceCross(&d.pos[f[0]], &d.pos[f[1]], &d.pos[f[2]])
		c.area += cross.Length() / 2
	}

	small := comps[:0]
	for _, c := range comps {
		if len(c.faces) <= maxLooseComponentFaces {
			small = append(small, c)
		}
	}
	sort.SliceStable(small, func(i, j int) bool { return small[i].area < small[j].area })

	for _, c := range small {
		if d.live <= target || d.live-len(c.faces) <= 0 {
			return
		}
		for _, fi := range c.faces {
			d.faceDead[fi] = true
		}
		d.live -= len(c.faces)
	}
}

// result compacts surviving faces and vertices into a fresh mesh.
func (d *decimator) result() *Mesh {
	out := NewMesh()
	remap := make(map[uint32]uint32)
	for fi, f := range d.faces {
		if d.faceDead[fi] {
			continue
		}
		var nf [3]uint32
		for k, v := range f {
			id, ok := remap[v]
			if !ok {
				id = uint32(len(out.Vertices))
				remap[v] = id
				out.Vertices = append(out.Vertices, d.pos[v])
			}
			nf[k] = id
		}
		out.Faces = append(out.Faces, nf)
	}
	return out
}
