package cadmesh

import (
	"math"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

// quadric stores the upper triangle of a symmetric 4x4 error matrix:
// a², ab, ac, ad, b², bc, bd, c², cd, d².
type quadric [10]float64

func planeQuadric(n *vec3d.T, d, w float64) quadric {
	a, b, c := n[0], n[1], n[2]
	return quadric{
		w * a * a, w * a * b, w * a * c, w * a * d,
		w * b * b, w * b * c, w * b * d,
		w * c * c, w * c * d,
		w * d * d,
	}
}

func (q *quadric) add(o *quadric) {
	for i := range q {
		q[i] += o[i]
	}
}

func (q quadric) plus(o quadric) quadric {
	q.add(&o)
	return q
}

// eval returns vᵀQv for the homogeneous point (v, 1).
func (q *quadric) eval(v *vec3d.T) float64 {
	x, y, z := v[0], v[1], v[2]
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}

// optimal solves for the point minimizing the quadric. It reports false when
// the 3x3 system is singular or badly conditioned.
func (q *quadric) optimal() (vec3d.T, bool) {
	a00, a01, a02 := q[0], q[1], q[2]
	a11, a12 := q[4], q[5]
	a22 := q[7]
	b0, b1, b2 := -q[3], -q[6], -q[8]

	det := a00*(a11*a22-a12*a12) - a01*(a01*a22-a12*a02) + a02*(a01*a12-a11*a02)

	m := math.Max(math.Abs(a00), math.Max(math.Abs(a11), math.Abs(a22)))
	m = math.Max(m, math.Max(math.Abs(a01), math.Max(math.Abs(a02), math.Abs(a12))))
	if m == 0 || math.Abs(det) <= 1e-10*m*m*m {
		return vec3d.T{}, false
	}

	x := (b0*(a11*a22-a12*a12) - a01*(b1*a22-a12*b2) + a02*(b1*a12-a11*b2)) / det
	y := (a00*(b1*a22-a12*b2) - b0*(a01*a22-a12*a02) + a02*(a01*b2-b1*a02)) / det
	z := (a00*(a11*b2-b1*a12) - a01*(a01*b2-b1*a02) + b0*(a01*a12-a11*a02)) / det
	v := vec3d.T{x, y, z}
	if !finite(&v) {
		return vec3d.T{}, false
	}
	return v, true
}
