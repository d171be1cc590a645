package drawing

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/mastercactapus/cncdrill/coord"
	"github.com/pkg/errors"
)

// DefaultPageSize is used when a VDX file does not give one, in inches.
const DefaultPageSize = 11.0

type vdxShape struct {
	pin     coord.Point
	ellipse bool
}

func between(s, start, end string) (string, bool) {
	if !strings.HasPrefix(s, start) || !strings.HasSuffix(s, end) || len(s) < len(start)+len(end) {
		return "", false
	}
	return s[len(start) : len(s)-len(end)], true
}

func parseFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}

// LoadVDX reads the ellipse shapes of a Visio XML drawing.
//
// Shape pins are measured from the bottom of the page; the returned points
// are measured from the top, optionally mirrored left to right.
func LoadVDX(r io.Reader, flipX bool) (*Drawing, error) {
	d := &Drawing{PageWidth: DefaultPageSize, PageHeight: DefaultPageSize}

	var shapes []vdxShape
	var stack []*vdxShape

	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 64*1024), 1024*1024)
	for scan.Scan() {
		l := strings.TrimSpace(scan.Text())

		switch {
		case strings.HasPrefix(l, "<Shape ID="):
			if !strings.HasSuffix(l, "/>") {
				stack = append(stack, &vdxShape{})
			}
			continue
		case l == "</Shape>":
			if len(stack) > 0 {
				shapes = append(shapes, *stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			continue
		}

		if v, ok := between(l, "<PageWidth Unit='IN'>", "</PageWidth>"); ok {
			d.PageWidth = parseFloat(v, d.PageWidth)
			continue
		}
		if v, ok := between(l, "<PageHeight Unit='IN'>", "</PageHeight>"); ok {
			d.PageHeight = parseFloat(v, d.PageHeight)
			continue
		}
		if len(stack) == 0 {
			continue
		}

		cur := stack[len(stack)-1]
		if v, ok := between(l, "<PinX>", "</PinX>"); ok {
			cur.pin.X = parseFloat(v, 0)
		} else if v, ok := between(l, "<PinY>", "</PinY>"); ok {
			cur.pin.Y = parseFloat(v, 0)
		} else if strings.HasPrefix(l, "<Ellipse IX=") {
			cur.ellipse = true
		}
	}
	if err := scan.Err(); err != nil {
		return nil, errors.Wrap(err, "read vdx")
	}
	// truncated files keep their open shapes
	for i := len(stack) - 1; i >= 0; i-- {
		shapes = append(shapes, *stack[i])
	}

	d.Stats.Shapes = len(shapes)
	raw := make([]coord.Point, 0, len(shapes))
	for _, s := range shapes {
		if !s.ellipse {
			d.Stats.NonEllipses++
			continue
		}
		raw = append(raw, s.pin)
	}

	raw, d.Stats.Zeros, d.Stats.Duplicates = Clean(raw, DefaultEpsilon)
	d.Points = make([]coord.Point, len(raw))
	for i, p := range raw {
		if flipX {
			p.X = d.PageWidth - p.X
		}
		p.Y = d.PageHeight - p.Y
		d.Points[i] = p
	}

	if len(d.Points) == 0 {
		return d, ErrNoHoles
	}
	return d, nil
}
