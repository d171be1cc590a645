package gcode

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidWord   = errors.New("invalid word in block")
	ErrRepeatedWord  = errors.New("word was repeated in a block")
	ErrModalConflict = errors.New("multiple words from same modal group")
)

// Block is one line of a program.
type Block []Word

// Arg returns the argument of the first w word.
func (b Block) Arg(w byte) (bool, float64) {
	for _, g := range b {
		if g.W == w {
			return true, g.Arg
		}
	}
	return false, 0
}

// Args returns the words that are not part of a modal group (axis words, parameters).
func (b Block) Args() Block {
	res := make(Block, 0, len(b))
	for _, g := range b {
		if g.ModalGroup() == ModalGroupNone {
			res = append(res, g)
		}
	}
	return res
}

// HasAxis reports whether any X, Y or Z word is present.
func (b Block) HasAxis() bool {
	for _, g := range b {
		if g.IsAxis() {
			return true
		}
	}
	return false
}

// Validate rejects repeated parameter words and two words of the same modal group.
func (b Block) Validate() error {
	var seenWord [256]bool
	var seenGroup [256]bool

	for _, g := range b {
		if !g.IsValid() {
			return errors.Wrap(ErrInvalidWord, g.String())
		}
		if g.W != 'G' && g.W != 'M' {
			if seenWord[g.W] {
				return errors.Wrap(ErrRepeatedWord, string(g.W))
			}
			seenWord[g.W] = true
		}

		m := g.ModalGroup()
		if m == ModalGroupNone || m == ModalGroupOther {
			continue
		}
		if seenGroup[m] {
			return errors.Wrap(ErrModalConflict, g.String())
		}
		seenGroup[m] = true
	}

	return nil
}

func (b Block) String() string {
	var s strings.Builder
	for _, g := range b {
		s.WriteString(g.String())
	}
	return s.String()
}
