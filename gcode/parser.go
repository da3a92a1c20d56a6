package gcode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// BufferMax is the longest input line, in bytes, that will be parsed.
// Anything beyond it is dropped.
const BufferMax = 1023

// Parser reads commands line by line.
type Parser struct{ br *bufio.Reader }

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}

	return &Parser{br: bufio.NewReader(r)}
}

// Read returns the next line as a Command. Blank lines are returned too,
// since every line advances the line counter.
func (p *Parser) Read() (Command, error) {
	s, err := p.br.ReadString('\n')
	if err == io.EOF && s != "" {
		err = nil
	}
	if err != nil {
		return Command{}, err
	}

	var truncated bool
	s = strings.TrimRight(s, "\r\n")
	if len(s) >= BufferMax-1 {
		s = s[:BufferMax-1]
		// run-on comments are fine to drop
		truncated = !strings.ContainsRune(s, ';')
	}

	cmd := ParseLine(s)
	cmd.Truncated = truncated
	return cmd, nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// normalizeWord collects the numeric literal following the letter at s[i],
// ignoring any whitespace embedded in it ("X 1 2 . 5" reads as 12.5). It
// returns the literal and the index of the first unconsumed byte.
func normalizeWord(s string, i int) (string, int) {
	var b strings.Builder
	i++
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		b.WriteByte(s[i])
		i++
	}
	digits := func() {
		for i < len(s) {
			if isSpace(s[i]) {
				i++
			} else if isDigit(s[i]) {
				b.WriteByte(s[i])
				i++
			} else {
				break
			}
		}
	}
	digits()
	if i < len(s) && s[i] == '.' {
		b.WriteByte('.')
		i++
		digits()
	}
	return b.String(), i
}

func parseFloat(digits string) float64 {
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	return v
}
func parseInt(digits string) int { return int(parseFloat(digits)) }

func splitMacro(body string) *Macro {
	name := body
	var params string
	if idx := strings.IndexFunc(body, func(r rune) bool { return r < 0x80 && isSpace(byte(r)) }); idx >= 0 {
		name, params = body[:idx], body[idx+1:]
	}
	return &Macro{Name: name, Params: strings.TrimSpace(params)}
}

// ParseLine parses a single line of input. Problems are recorded in
// Notes; parsing never fails outright.
func ParseLine(s string) Command {
	var cmd Command
	note := func(format string, args ...interface{}) {
		cmd.Notes = append(cmd.Notes, fmt.Sprintf(format, args...))
	}

	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i < len(s) && (s[i] == 'n' || s[i] == 'N') {
		var digits string
		digits, i = normalizeWord(s, i)
		if digits == "" {
			note("Syntax error: line number command word 'N' is missing digits")
		} else {
			cmd.Line = parseInt(digits)
			cmd.HasLine = true
		}
	}

parse:
	for i < len(s) {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case isAlpha(c):
			var digits string
			digits, i = normalizeWord(s, i)
			switch c {
			case 'x', 'X':
				cmd.X = parseFloat(digits)
				cmd.Set |= FieldX
			case 'y', 'Y':
				cmd.Y = parseFloat(digits)
				cmd.Set |= FieldY
			case 'z', 'Z':
				cmd.Z = parseFloat(digits)
				cmd.Set |= FieldZ
			case 'a', 'A':
				cmd.A = parseFloat(digits)
				cmd.Set |= FieldA
			case 'b', 'B':
				cmd.B = parseFloat(digits)
				cmd.Set |= FieldB
			case 'e', 'E':
				cmd.E = parseFloat(digits)
				cmd.Set |= FieldE
			case 'f', 'F':
				cmd.F = parseFloat(digits)
				cmd.Set |= FieldF
			case 'p', 'P':
				cmd.P = parseFloat(digits)
				cmd.Set |= FieldP
			case 'r', 'R':
				cmd.R = parseFloat(digits)
				cmd.Set |= FieldR
			case 's', 'S':
				cmd.S = parseFloat(digits)
				cmd.Set |= FieldS
			case 'g', 'G':
				cmd.G = parseInt(digits)
				cmd.Set |= FieldG
			case 'm', 'M':
				cmd.M = parseInt(digits)
				cmd.Set |= FieldM
				if cmd.M == 23 || cmd.M == 28 {
					// filenames run to the end of the line or checksum
					rest := s[i:]
					if idx := strings.IndexByte(rest, '*'); idx >= 0 {
						rest = rest[:idx]
					}
					i += len(rest)
					cmd.Arg = strings.TrimSpace(rest)
					cmd.Set |= FieldArg
				}
			case 't', 'T':
				cmd.T = parseInt(digits)
				cmd.Set |= FieldT
			case 'n', 'N':
				// only meaningful as the M110 parameter, which is not used
				if cmd.Has(FieldM) && cmd.M == 110 {
					break
				}
				note("Syntax warning: unrecognised command word '%c'", c)
			default:
				note("Syntax warning: unrecognised command word '%c'", c)
			}
		case c == ';':
			if i+2 < len(s) && s[i+1] == '@' && isAlpha(s[i+2]) {
				cmd.Macro = splitMacro(s[i+2:])
				break parse
			}
			cmd.Comment = strings.TrimSpace(s[i+1:])
			cmd.Set |= FieldComment
			break parse
		case c == '(':
			body := s[i+1:]
			if len(body) > 1 && body[0] == '@' && isAlpha(body[1]) {
				if e := strings.LastIndexByte(body, ')'); e >= 0 {
					body = body[:e]
				}
				cmd.Macro = splitMacro(body[1:])
				break parse
			}
			e := strings.IndexByte(body, ')')
			if n := strings.IndexByte(body, '('); n >= 0 && e >= 0 && n < e {
				note("Syntax warning: nested comment detected")
				e = strings.LastIndexByte(body, ')')
			}
			if e < 0 {
				note("Syntax warning: comment is missing closing ')'")
				cmd.Comment = strings.TrimSpace(body)
				cmd.Set |= FieldComment
				break parse
			}
			cmd.Comment = strings.TrimSpace(body[:e])
			cmd.Set |= FieldComment
			i += e + 2
		case c == '*':
			// checksum
			break parse
		case c < 0x20 || c == 0x7f:
			break parse
		default:
			note("Syntax error: unrecognised gcode '%s'", s[i:])
			break parse
		}
	}

	return cmd
}
