package gcode

import "strings"

// Parse reads every block of a program held in memory.
func Parse(data string) ([]Block, error) {
	return ReadAll(NewParser(strings.NewReader(data)))
}

// MustParse is Parse for literals known to be valid.
func MustParse(data string) []Block {
	b, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return b
}
