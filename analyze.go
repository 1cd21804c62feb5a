package cadmesh

import (
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"go.uber.org/zap"
)

const (
	CentroidVolume     = "volume"
	CentroidVertexMean = "vertex_mean"
	CentroidFallback   = "fallback"
)

type BoundingBox struct {
	Min    [3]float64 `json:"min"`
	Max    [3]float64 `json:"max"`
	Center [3]float64 `json:"center"`
}

// ConnectionPoint is an assembly anchor on the part surface. Side is one of
// top, bottom, left, right, front, back.
type ConnectionPoint struct {
	Position [3]float64 `json:"position"`
	Normal   [3]float64 `json:"normal"`
	Side     string     `json:"side"`
}

// GeometryData is the metadata record derived from the final mesh.
type GeometryData struct {
	BoundingBox      BoundingBox       `json:"bounding_box"`
	Volume           float64           `json:"volume"`
	Center           [3]float64        `json:"center"`
	ConnectionPoints []ConnectionPoint `json:"connection_points"`
	CentroidMethod   string            `json:"centroid_method"`
}

// IsFallback reports whether g is the unit box substitute for a mesh without
// usable bounds.
func (g *GeometryData) IsFallback() bool {
	return g.CentroidMethod == CentroidFallback
}

// ConnectionPointExtractor derives placement anchors for a mesh.
type ConnectionPointExtractor interface {
	Extract(mesh *Mesh, box vec3d.Box, centroid vec3d.T) []ConnectionPoint
}

// BoundsExtractor places one anchor per bounding box side. Side anchors take
// the box extreme on their own axis and the centroid elsewhere.
type BoundsExtractor struct{}

func (BoundsExtractor) Extract(_ *Mesh, box vec3d.Box, c vec3d.T) []ConnectionPoint {
	mn, mx := box.Min, box.Max
	return []ConnectionPoint{
		{Position: mn, Normal: [3]float64{0, 0, -1}, Side: "bottom"},
		{Position: mx, Normal: [3]float64{0, 0, 1}, Side: "top"},
		{Position: [3]float64{mn[0], mn[1], c[2]}, Normal: [3]float64{-1, 0, 0}, Side: "left"},
		{Position: [3]float64{mx[0], mx[1], c[2]}, Normal: [3]float64{1, 0, 0}, Side: "right"},
		{Position: [3]float64{c[0], mn[1], c[2]}, Normal: [3]float64{0, -1, 0}, Side: "front"},
		{Position: [3]float64{c[0], mx[1], c[2]}, Normal: [3]float64{0, 1, 0}, Side: "back"},
	}
}

// Analyzer computes GeometryData. The zero value uses BoundsExtractor and
// discards logs.
type Analyzer struct {
	Extractor ConnectionPointExtractor
	Logger    *zap.Logger
}

func NewAnalyzer(log *zap.Logger) *Analyzer {
	return &Analyzer{Extractor: BoundsExtractor{}, Logger: log}
}

// FallbackGeometry is returned for meshes with no vertices or no finite
// bounds.
func FallbackGeometry() *GeometryData {
	return &GeometryData{
		BoundingBox: BoundingBox{
			Min:    [3]float64{0, 0, 0},
			Max:    [3]float64{1, 1, 1},
			Center: [3]float64{0.5, 0.5, 0.5},
		},
		Volume:           1.0,
		Center:           [3]float64{0.5, 0.5, 0.5},
		ConnectionPoints: []ConnectionPoint{},
		CentroidMethod:   CentroidFallback,
	}
}

// Analyze never fails; degenerate input yields FallbackGeometry.
func (a *Analyzer) Analyze(mesh *Mesh) *GeometryData {
	log := a.Logger
	if log == nil {
		log = zap.NewNop()
	}
	box, ok := mesh.Bounds()
	if !ok || mesh.TriangleCount() == 0 {
		log.Warn("geometry analysis fell back to unit box",
			zap.String("fallback", "unit_box"),
			zap.Int("vertices", mesh.VertexCount()),
			zap.Int("triangles", mesh.TriangleCount()))
		return FallbackGeometry()
	}

	welded := mesh.Weld()
	volume, centroid, method := massProperties(welded)
	log.Debug("centroid computed",
		zap.String("centroid_method", method),
		zap.Bool("closed", method == CentroidVolume),
		zap.Float64("volume", volume))

	extractor := a.Extractor
	if extractor == nil {
		extractor = BoundsExtractor{}
	}
	points := extractor.Extract(mesh, box, centroid)
	if points == nil {
		points = []ConnectionPoint{}
	}
	return &GeometryData{
		BoundingBox: BoundingBox{
			Min:    box.Min,
			Max:    box.Max,
			Center: centroid,
		},
		Volume:           volume,
		Center:           centroid,
		ConnectionPoints: points,
		CentroidMethod:   method,
	}
}

// massProperties returns the absolute enclosed volume and the centroid of a
// welded mesh. The volume weighted centroid is used only for closed,
// consistently wound meshes with non-zero volume.
func massProperties(m *Mesh) (volume float64, centroid vec3d.T, method string) {
	var signed float64
	var acc vec3d.T
	for _, f := range m.Faces {
		a, b, c := &m.Vertices[f[0]], &m.Vertices[f[1]], &m.Vertices[f[2]]
		bc := vec3d.Cross(b, c)
		v := vec3d.Dot(a, &bc) / 6
		signed += v
		for k := 0; k < 3; k++ {
			acc[k] += v * (a[k] + b[k] + c[k]) / 4
		}
	}
	volume = math.Abs(signed)
	if math.IsNaN(volume) || math.IsInf(volume, 0) {
		volume = 0
	}

	if isClosed(m) && volume > volumeEpsilon(m) {
		centroid = vec3d.T{acc[0] / signed, acc[1] / signed, acc[2] / signed}
		if finite(&centroid) {
			return volume, centroid, CentroidVolume
		}
	}
	return volume, vertexMean(m), CentroidVertexMean
}

func volumeEpsilon(m *Mesh) float64 {
	box, ok := m.Bounds()
	if !ok {
		return 0
	}
	d := vec3d.Sub(&box.Max, &box.Min)
	l := d.Length()
	return 1e-12 * l * l * l
}

func vertexMean(m *Mesh) vec3d.T {
	var c vec3d.T
	for i := range m.Vertices {
		c.Add(&m.Vertices[i])
	}
	n := float64(len(m.Vertices))
	return vec3d.T{c[0] / n, c[1] / n, c[2] / n}
}

// isClosed reports whether every directed edge is matched by exactly one
// opposite edge, i.e. the surface is watertight and consistently wound.
func isClosed(m *Mesh) bool {
	if len(m.Faces) < 4 {
		return false
	}
	edges := make(map[[2]uint32]int, len(m.Faces)*3)
	for _, f := range m.Faces {
		for k := 0; k < 3; k++ {
			edges[[2]uint32{f[k], f[(k+1)%3]}]++
		}
	}
	for e, n := range edges {
		if n != 1 || edges[[2]uint32{e[1], e[0]}] != 1 {
			return false
		}
	}
	return true
}
