// Package tour reorders a job's targets to shorten total travel.
//
// Nothing in this package mutates its input; every heuristic returns a new ordering.
package tour

import (
	"math"
	"sort"

	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/job"
)

// DefaultBand is the tolerance used to group targets into scan-line bands.
const DefaultBand = 0.010

// Tour is one candidate ordering of a job.
type Tour struct {
	Name   string       `json:"name"`
	Order  []job.Target `json:"order"`
	Length float64      `json:"length"`
}

// Length returns the travel distance from start through every target in order.
func Length(start coord.Point, targets []job.Target) float64 {
	var l float64
	cur := start
	for _, t := range targets {
		l += cur.Distance(t.Location)
		cur = t.Location
	}
	return l
}

func newTour(name string, start coord.Point, order []job.Target) Tour {
	return Tour{Name: name, Order: order, Length: Length(start, order)}
}

func clone(targets []job.Target) []job.Target {
	res := make([]job.Target, len(targets))
	copy(res, targets)
	return res
}

// Original returns the targets in their current order.
func Original(start coord.Point, targets []job.Target) Tour {
	return newTour("original", start, clone(targets))
}

// NearestNeighbor repeatedly visits the closest remaining target.
// Ties go to the target that comes first in the list.
func NearestNeighbor(start coord.Point, targets []job.Target) Tour {
	remaining := clone(targets)
	order := make([]job.Target, 0, len(targets))
	cur := start
	for len(remaining) > 0 {
		best := 0
		bestDist := math.Inf(1)
		for i, t := range remaining {
			d := cur.Distance(t.Location)
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		order = append(order, remaining[best])
		cur = remaining[best].Location
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return newTour("nearest-neighbor", start, order)
}

// HorizontalScan visits rows of targets bottom to top, alternating
// left-to-right and right-to-left between rows.
func HorizontalScan(start coord.Point, targets []job.Target, band float64) Tour {
	order := scan(targets, band,
		func(p coord.Point) float64 { return p.Y },
		func(p coord.Point) float64 { return p.X },
	)
	return newTour("horizontal-scan", start, order)
}

// VerticalScan visits columns of targets left to right, alternating
// bottom-to-top and top-to-bottom between columns.
func VerticalScan(start coord.Point, targets []job.Target, band float64) Tour {
	order := scan(targets, band,
		func(p coord.Point) float64 { return p.X },
		func(p coord.Point) float64 { return p.Y },
	)
	return newTour("vertical-scan", start, order)
}

// scan groups targets into bands along the major axis, then sweeps each band
// along the minor axis, reversing direction every other band.
func scan(targets []job.Target, band float64, major, minor func(coord.Point) float64) []job.Target {
	sorted := clone(targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return major(sorted[i].Location) < major(sorted[j].Location)
	})

	order := make([]job.Target, 0, len(sorted))
	var reverse bool
	for len(sorted) > 0 {
		n := 1
		base := major(sorted[0].Location)
		for n < len(sorted) && major(sorted[n].Location)-base <= band {
			n++
		}
		row := sorted[:n]
		sorted = sorted[n:]

		sort.SliceStable(row, func(i, j int) bool {
			if reverse {
				return minor(row[i].Location) > minor(row[j].Location)
			}
			return minor(row[i].Location) < minor(row[j].Location)
		})
		order = append(order, row...)
		reverse = !reverse
	}

	return order
}
