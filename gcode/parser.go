package gcode

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrSyntax is returned for a line that is not a run of letter-number words.
var ErrSyntax = errors.New("invalid or unhandled line")

// Parser reads blocks from text, one line per block.
type Parser struct {
	br   *bufio.Reader
	line int
}

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}

	return &Parser{br: bufio.NewReader(r)}
}

var (
	rxLine    = regexp.MustCompile(`^([A-Z][0-9.\-+]+)+$`)
	rxWord    = regexp.MustCompile(`[A-Z][0-9.\-+]+`)
	rxComment = regexp.MustCompile(`\([^)]*\)`)
)

// Line returns the number of the last line read.
func (p *Parser) Line() int { return p.line }

// clean strips comments, spaces and case from a line.
func clean(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	s = rxComment.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "")
	return strings.ToUpper(s)
}

// Read returns the next non-empty block; blank lines, comments and
// program markers (%) are skipped.
func (p *Parser) Read() (Block, error) {
	for {
		s, err := p.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return nil, err
		}
		p.line++

		s = clean(s)
		if s == "" || s == "%" {
			continue
		}
		if !rxLine.MatchString(s) {
			return nil, errors.Wrapf(ErrSyntax, "line %d: %s", p.line, s)
		}

		codes := rxWord.FindAllString(s, -1)
		b := make(Block, len(codes))
		for i, c := range codes {
			arg, err := strconv.ParseFloat(c[1:], 64)
			if err != nil {
				return nil, errors.Wrapf(ErrSyntax, "line %d: bad number in %s", p.line, c)
			}
			b[i] = Word{W: c[0], Arg: arg}
		}
		return b, nil
	}
}
