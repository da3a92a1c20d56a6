package gcode

import "io"

// Reader provides parsed commands one at a time.
type Reader interface {
	Read() (Command, error)
}

var _ Reader = &Parser{}

// CommandsReader replays a fixed list of commands.
type CommandsReader struct {
	Commands []Command
	n        int
}

func (c *CommandsReader) Read() (Command, error) {
	if c.n == len(c.Commands) {
		return Command{}, io.EOF
	}

	c.n++
	return c.Commands[c.n-1], nil
}

// Rewind starts reading from the first command again.
func (c *CommandsReader) Rewind() { c.n = 0 }
