package drawing

import (
	"io"
	"math"

	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/gcode"
	"github.com/pkg/errors"
)

// LoadGCode reads the holes of a drill program: every X/Y position reached
// while a canned drill cycle (G81, G82, G83) is active.
//
// Positions are converted to inches. The page is the bounding box of the holes
// from the origin.
func LoadGCode(r io.Reader) (*Drawing, error) {
	p := gcode.NewParser(r)
	vm := gcode.NewVM()

	var raw []coord.Point
	for {
		b, err := p.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		moved, err := vm.Run(b)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", p.Line())
		}
		if moved && gcode.IsDrillCycle(vm.Motion()) {
			raw = append(raw, vm.Position())
		}
	}

	d := &Drawing{Stats: Stats{Shapes: len(raw)}}
	d.Points, d.Stats.Zeros, d.Stats.Duplicates = Clean(raw, DefaultEpsilon)
	for _, pt := range d.Points {
		d.PageWidth = math.Max(d.PageWidth, pt.X)
		d.PageHeight = math.Max(d.PageHeight, pt.Y)
	}
	if len(d.Points) == 0 {
		return d, ErrNoHoles
	}
	return d, nil
}

// ExportOptions describe the drill cycle written by WriteGCode, in inches.
type ExportOptions struct {
	// Depth is the Z of the hole bottom, usually negative.
	Depth float64
	// Retract is the Z the drill returns to between holes.
	Retract float64
	Feed    float64
}

// DefaultExport drills 1/16in deep plates.
var DefaultExport = ExportOptions{Depth: -0.0625, Retract: 0.1, Feed: 5}

// WriteGCode writes points as a G81 drill program.
func WriteGCode(w io.Writer, points []coord.Point, opts ExportOptions) error {
	blocks := make([]gcode.Block, 0, len(points)+4)
	blocks = append(blocks,
		gcode.Block{{W: 'G', Arg: 90}, {W: 'G', Arg: 20}, {W: 'G', Arg: 98}},
		gcode.Block{{W: 'G', Arg: 0}, {W: 'Z', Arg: opts.Retract}},
	)
	for i, p := range points {
		b := gcode.Block{{W: 'X', Arg: p.X}, {W: 'Y', Arg: p.Y}}
		if i == 0 {
			b = gcode.Block{
				{W: 'G', Arg: 81},
				{W: 'X', Arg: p.X},
				{W: 'Y', Arg: p.Y},
				{W: 'Z', Arg: opts.Depth},
				{W: 'R', Arg: opts.Retract},
				{W: 'F', Arg: opts.Feed},
			}
		}
		blocks = append(blocks, b)
	}
	blocks = append(blocks,
		gcode.Block{{W: 'G', Arg: 80}},
		gcode.Block{{W: 'M', Arg: 2}},
	)

	_, err := io.Copy(w, gcode.NewBuffer(&gcode.Program{Blocks: blocks}))
	return errors.Wrap(err, "write gcode")
}
