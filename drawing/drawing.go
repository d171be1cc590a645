// Package drawing loads hole locations from drawing files.
package drawing

import (
	"github.com/fogleman/delaunay"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/pkg/errors"
)

// DefaultEpsilon is the distance under which two holes are the same hole, in inches.
const DefaultEpsilon = 0.010

// ErrNoHoles is returned when a file holds no usable hole.
var ErrNoHoles = errors.New("no holes found")

// Drawing is the result of loading a file.
type Drawing struct {
	Points []coord.Point

	PageWidth  float64
	PageHeight float64

	Stats Stats
}

// Stats count what was dropped while loading.
type Stats struct {
	Shapes      int
	NonEllipses int
	Zeros       int
	Duplicates  int
}

// Clean removes points at the origin and points closer than eps to an
// earlier point. The first point of every cluster is kept, in input order.
func Clean(points []coord.Point, eps float64) (res []coord.Point, zeros, dups int) {
	res = make([]coord.Point, 0, len(points))
	for _, p := range points {
		if p.X == 0 && p.Y == 0 {
			zeros++
			continue
		}
		res = append(res, p)
	}

	drop := duplicates(res, eps)
	out := res[:0]
	for i, p := range res {
		if drop[i] {
			dups++
			continue
		}
		out = append(out, p)
	}
	return out, zeros, dups
}

// duplicates flags every point within eps of an earlier kept point.
//
// Two points closer than eps are always joined by a path of triangulation
// edges shorter than eps, so only points in the same edge-connected group
// need to be compared.
func duplicates(points []coord.Point, eps float64) []bool {
	n := len(points)
	drop := make([]bool, n)
	if n < 2 {
		return drop
	}

	groups := newUnion(n)
	pts := make([]delaunay.Point, n)
	for i, p := range points {
		pts[i] = delaunay.Point{X: p.X, Y: p.Y}
	}
	joinNear := func(i int) {
		for j := range points {
			if j != i && points[i].Distance(points[j]) < eps {
				groups.join(i, j)
			}
		}
	}

	tri, err := delaunay.Triangulate(pts)
	if err != nil || len(tri.Triangles) == 0 {
		// collinear or too few points
		for i := range points {
			joinNear(i)
		}
	} else {
		seen := make([]bool, n)
		for t := 0; t+2 < len(tri.Triangles); t += 3 {
			a, b, c := tri.Triangles[t], tri.Triangles[t+1], tri.Triangles[t+2]
			seen[a], seen[b], seen[c] = true, true, true
			for _, e := range [3][2]int{{a, b}, {b, c}, {c, a}} {
				if points[e[0]].Distance(points[e[1]]) < eps {
					groups.join(e[0], e[1])
				}
			}
		}
		// coincident points are left out of the triangulation
		for i, ok := range seen {
			if !ok {
				joinNear(i)
			}
		}
	}

	members := make(map[int][]int)
	for i := range points {
		r := groups.find(i)
		members[r] = append(members[r], i)
	}
	for _, m := range members {
		if len(m) < 2 {
			continue
		}
		for x, i := range m {
			if drop[i] {
				continue
			}
			for _, j := range m[x+1:] {
				if !drop[j] && points[i].Distance(points[j]) < eps {
					drop[j] = true
				}
			}
		}
	}
	return drop
}

type union []int

func newUnion(n int) union {
	u := make(union, n)
	for i := range u {
		u[i] = i
	}
	return u
}

func (u union) find(i int) int {
	for u[i] != i {
		u[i] = u[u[i]]
		i = u[i]
	}
	return i
}

func (u union) join(a, b int) {
	a, b = u.find(a), u.find(b)
	if a != b {
		u[b] = a
	}
}
