package gcode

import (
	"bytes"
	"io"
)

// Parse will parse every line in data.
func Parse(data string) ([]Command, error) {
	r := NewParser(bytes.NewBufferString(data))
	var res []Command
	for {
		cmd, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		res = append(res, cmd)
	}
	return res, nil
}
