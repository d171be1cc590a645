package gcode

import "io"

// A Reader yields blocks until it returns io.EOF.
type Reader interface {
	Read() (Block, error)
}

// Program is a Reader over a fixed list of blocks.
type Program struct {
	Blocks []Block
	n      int
}

func (p *Program) Read() (Block, error) {
	if p.n == len(p.Blocks) {
		return nil, io.EOF
	}
	p.n++
	return p.Blocks[p.n-1], nil
}

// ReadAll reads blocks from r until io.EOF.
func ReadAll(r Reader) ([]Block, error) {
	var res []Block
	for {
		b, err := r.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res = append(res, b)
	}
}
