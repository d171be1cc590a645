package coord

import (
	"math"
	"strconv"
)

// Point is a location on the table, in inches.
type Point struct{ X, Y float64 }

// Add will add the target values to p.
func (p Point) Add(target Point) Point {
	p.X += target.X
	p.Y += target.Y
	return p
}

// Sub will subtract the target values from p.
func (p Point) Sub(target Point) Point {
	p.X -= target.X
	p.Y -= target.Y
	return p
}

// Snap will round p to the nearest multiple of size on both axes.
//
// A size <= 0 returns p unchanged.
func (p Point) Snap(size float64) Point {
	if size <= 0 {
		return p
	}
	p.X = math.Round(p.X/size) * size
	p.Y = math.Round(p.Y/size) * size
	return p
}

// DistanceXY will return the 2D distance to p from (x,y).
func (p Point) DistanceXY(x, y float64) float64 {
	return math.Hypot(x-p.X, y-p.Y)
}

// Distance will return the Euclidean distance between p and target.
func (p Point) Distance(target Point) float64 {
	return p.DistanceXY(target.X, target.Y)
}

func (p Point) String() string {
	return strconv.FormatFloat(p.X, 'f', 3, 64) + ", " + strconv.FormatFloat(p.Y, 'f', 3, 64)
}
