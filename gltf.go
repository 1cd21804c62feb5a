package cadmesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/quaternion"
	vec3d "github.com/flywave/go3d/float64/vec3"

	"github.com/qmuntal/gltf"
)

var (
	identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	emptyMatrix    = [16]float32{}
)

// GltfReader loads .gltf and .glb files into a Scene and flattens it.
type GltfReader struct {
	doc        *gltf.Document
	geometries map[uint32]string
}

func NewGltfReader() *GltfReader {
	return &GltfReader{}
}

func (g *GltfReader) Read(path string) (*Mesh, error) {
	scene, err := g.ReadScene(path)
	if err != nil {
		return nil, err
	}
	mesh, err := Flatten(scene)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Path = path
		}
		return nil, err
	}
	return mesh, nil
}

func (g *GltfReader) ReadScene(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(ErrFileNotFound, "load", path, err)
		}
		return nil, newError(ErrLoad, "load gltf", path, err)
	}
	scene, err := g.SceneFromDoc(doc)
	if err != nil {
		return nil, newError(ErrLoad, "load gltf", path, err)
	}
	return scene, nil
}

type nodeVisit struct {
	index  uint32
	parent dmat.T
}

// SceneFromDoc walks the node hierarchy of the document's active scene and
// records every reachable node once, with its world transform.
func (g *GltfReader) SceneFromDoc(doc *gltf.Document) (*Scene, error) {
	g.doc = doc
	g.geometries = make(map[uint32]string)
	scene := NewScene()

	roots := g.rootNodes()
	stack := make([]nodeVisit, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, nodeVisit{index: roots[i], parent: dmat.Ident})
	}
	visited := make([]bool, len(doc.Nodes))

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if int(cur.index) >= len(doc.Nodes) {
			return nil, fmt.Errorf("node index %d out of range", cur.index)
		}
		if visited[cur.index] {
			continue
		}
		visited[cur.index] = true

		nd := doc.Nodes[cur.index]
		local := toMat(nd)
		world := dmat.Ident
		world.AssignMul(&cur.parent, &local)

		geometry := ""
		if nd.Mesh != nil {
			name, err := g.geometry(scene, *nd.Mesh)
			if err != nil {
				return nil, err
			}
			geometry = name
		}
		name := nd.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", cur.index)
		}
		scene.AddNode(name, geometry, world)

		for i := len(nd.Children) - 1; i >= 0; i-- {
			stack = append(stack, nodeVisit{index: nd.Children[i], parent: world})
		}
	}
	return scene, nil
}

// rootNodes returns the active scene's roots, or every parentless node when
// the document declares no scene.
func (g *GltfReader) rootNodes() []uint32 {
	doc := g.doc
	if len(doc.Scenes) > 0 {
		idx := uint32(0)
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}
	child := make(map[uint32]bool)
	for _, nd := range doc.Nodes {
		for _, c := range nd.Children {
			child[c] = true
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !child[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

// geometry decodes glTF mesh mhid once and registers it in the scene.
func (g *GltfReader) geometry(scene *Scene, mhid uint32) (string, error) {
	if name, ok := g.geometries[mhid]; ok {
		return name, nil
	}
	if int(mhid) >= len(g.doc.Meshes) {
		return "", fmt.Errorf("mesh index %d out of range", mhid)
	}
	mh := g.doc.Meshes[mhid]
	mesh := NewMesh()
	for pi, ps := range mh.Primitives {
		if ps.Mode != gltf.PrimitiveTriangles {
			continue
		}
		posIdx, ok := ps.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, err := readPositions(g.doc, posIdx)
		if err != nil {
			return "", fmt.Errorf("mesh %d primitive %d: %w", mhid, pi, err)
		}
		var indices []uint32
		if ps.Indices != nil {
			indices, err = readIndices(g.doc, *ps.Indices)
			if err != nil {
				return "", fmt.Errorf("mesh %d primitive %d: %w", mhid, pi, err)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		prim := &Mesh{Vertices: positions}
		for i := 0; i+2 < len(indices); i += 3 {
			f := [3]uint32{indices[i], indices[i+1], indices[i+2]}
			if f[0] >= uint32(len(positions)) || f[1] >= uint32(len(positions)) || f[2] >= uint32(len(positions)) {
				return "", fmt.Errorf("mesh %d primitive %d: index out of range", mhid, pi)
			}
			prim.Faces = append(prim.Faces, f)
		}
		mesh.Append(prim)
	}
	name := fmt.Sprintf("mesh_%d", mhid)
	if mh.Name != "" {
		name = fmt.Sprintf("%s_%d", mh.Name, mhid)
	}
	scene.Geometry[name] = mesh
	g.geometries[mhid] = name
	return name, nil
}

// toMat builds the node's local transform from either its matrix or its
// translation / rotation / scale triple.
func toMat(nd *gltf.Node) dmat.T {
	if nd.Matrix != identityMatrix && nd.Matrix != emptyMatrix {
		var m dmat.T
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				m[c][r] = float64(nd.Matrix[c*4+r])
			}
		}
		return m
	}

	scl := nd.Scale
	if scl == [3]float32{} {
		scl = [3]float32{1, 1, 1}
	}
	rots := nd.Rotation
	if rots == [4]float32{} {
		rots = [4]float32{0, 0, 0, 1}
	}
	trans := nd.Translation

	sc := vec3d.T{float64(scl[0]), float64(scl[1]), float64(scl[2])}
	tra := vec3d.T{float64(trans[0]), float64(trans[1]), float64(trans[2])}
	rot := quaternion.T{float64(rots[0]), float64(rots[1]), float64(rots[2]), float64(rots[3])}
	return *dmat.Compose(&tra, &rot, &sc)
}

// accessorView resolves the bytes behind an accessor and checks that count
// elements of elemSize fit at the given stride.
func accessorView(doc *gltf.Document, idx uint32, elemSize int) (data []byte, stride int, count int, err error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, 0, 0, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.Sparse != nil {
		return nil, 0, 0, fmt.Errorf("accessor %d: sparse accessors are not supported", idx)
	}
	if acc.BufferView == nil || int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, 0, 0, fmt.Errorf("accessor %d has no buffer view", idx)
	}
	bv := doc.BufferViews[*acc.BufferView]
	if int(bv.Buffer) >= len(doc.Buffers) {
		return nil, 0, 0, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	buffer := doc.Buffers[bv.Buffer]

	stride = int(bv.ByteStride)
	if stride == 0 {
		stride = elemSize
	}
	count = int(acc.Count)
	start := int(bv.ByteOffset) + int(acc.ByteOffset)
	viewEnd := int(bv.ByteOffset) + int(bv.ByteLength)
	if viewEnd > len(buffer.Data) {
		return nil, 0, 0, fmt.Errorf("buffer view exceeds buffer (%d > %d)", viewEnd, len(buffer.Data))
	}
	if start > viewEnd {
		return nil, 0, 0, fmt.Errorf("accessor %d offset %d exceeds its buffer view", idx, start)
	}
	if count > 0 && start+(count-1)*stride+elemSize > viewEnd {
		return nil, 0, 0, fmt.Errorf("accessor %d exceeds its buffer view", idx)
	}
	return buffer.Data[start:viewEnd], stride, count, nil
}

func readPositions(doc *gltf.Document, idx uint32) ([]vec3d.T, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.Type != gltf.AccessorVec3 || acc.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("accessor %d: positions must be float VEC3", idx)
	}
	data, stride, count, err := accessorView(doc, idx, 12)
	if err != nil {
		return nil, err
	}
	out := make([]vec3d.T, count)
	for i := 0; i < count; i++ {
		off := i * stride
		for c := 0; c < 3; c++ {
			bits := binary.LittleEndian.Uint32(data[off+c*4:])
			out[i][c] = float64(math.Float32frombits(bits))
		}
	}
	return out, nil
}

func readIndices(doc *gltf.Document, idx uint32) ([]uint32, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("accessor %d: indices must be SCALAR", idx)
	}
	var size int
	switch acc.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("accessor %d: unsupported index component type", idx)
	}
	data, stride, count, err := accessorView(doc, idx, size)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		off := i * stride
		switch size {
		case 1:
			out[i] = uint32(data[off])
		case 2:
			out[i] = uint32(binary.LittleEndian.Uint16(data[off:]))
		case 4:
			out[i] = binary.LittleEndian.Uint32(data[off:])
		}
	}
	return out, nil
}

var _ FormatReader = (*GltfReader)(nil)
