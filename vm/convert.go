package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/gcode"
	"github.com/mastercactapus/gpx/x3g"
)

// SetSink directs output to s, for line at a time translation with
// ConvertLine. A nil Sink discards output.
func (m *Machine) SetSink(s x3g.Sink) { m.enc.Sink = s }

// StartConvert finishes setup before the first line is translated. An
// empty buildName keeps the current one.
func (m *Machine) StartConvert(buildName string) {
	if buildName != "" {
		m.buildName = buildName
	}
	if m.ditto && m.prof.ExtruderCount == 1 {
		m.infof("Configuration error: ditto printing cannot access non-existant second extruder")
		m.ditto = false
	}
	m.applyFilamentOverrides()
}

func (m *Machine) applyFilamentOverrides() {
	for tool := range m.override {
		d := m.override[tool].ActualFilamentDiameter
		if d > 0.0001 && d != m.prof.NominalFilamentDiameter {
			m.setFilamentScale(tool, d)
		}
	}
}

// ConvertLine translates a single line of input. ErrEndOfFile is
// returned after M2.
func (m *Machine) ConvertLine(s string) error {
	cmd := gcode.ParseLine(s)
	return m.Exec(&cmd)
}

// Exec translates a parsed command. The command may be modified.
func (m *Machine) Exec(cmd *gcode.Command) error {
	next := m.line + 1
	if cmd.HasLine {
		m.line = cmd.Line
		next = cmd.Line + 1
	}
	m.emitted = false

	if cmd.Truncated {
		m.warnf("Buffer overflow: input exceeds %d character limit, remaining characters in line will be ignored", gcode.BufferMax+1)
	}
	for _, n := range cmd.Notes {
		if strings.HasPrefix(n, "Syntax error") {
			m.errorf("%s", n)
		} else {
			m.warnf("%s", n)
		}
	}

	if cmd.Macro != nil {
		if err := m.Macro(cmd.Macro.Name, cmd.Macro.Params); err != nil {
			return err
		}
	}

	// makerbot Tn is not sticky
	if !m.reprap || m.opts.ExplicitToolChange {
		m.next = m.extruder
	}
	if cmd.Has(gcode.FieldT) && !m.ditto {
		if cmd.T >= 0 && cmd.T < m.prof.ExtruderCount {
			m.next = cmd.T
		} else {
			m.warnf("Semantic warning: T%d cannot select non-existant extruder", cmd.T)
		}
	}

	// E is whichever extruder is current
	if cmd.Has(gcode.FieldE) {
		if m.extruder == 0 {
			cmd.A = cmd.E
			cmd.Set |= gcode.FieldA
		} else {
			cmd.B = cmd.E
			cmd.Set |= gcode.FieldB
		}
	}

	if err := m.dispatch(cmd); err != nil {
		return err
	}

	if m.doPauseAt > 0 {
		m.doPauseAt--
		if m.doPauseAt == 0 && m.zIndex < len(m.zCommands) {
			if err := m.enc.PauseAtZ(float32(m.zCommands[m.zIndex].z)); err != nil {
				return err
			}
		}
	}

	if err := m.autoProgress(); err != nil {
		return err
	}
	m.line = next
	return nil
}

func (m *Machine) dispatch(cmd *gcode.Command) error {
	switch {
	case cmd.Has(gcode.FieldG):
		return m.execG(cmd)
	case cmd.Has(gcode.FieldM):
		return m.execM(cmd)
	case cmd.HasAny(gcode.FieldAxes | gcode.FieldF):
		if cmd.Has(gcode.FieldComment) || (!m.relative && m.ignoreAbsolute) {
			return nil
		}
		delta, relative, err := m.calculateTarget(cmd)
		if err != nil {
			return err
		}
		if err := m.queueMove(cmd.Axes(), delta, relative, 0); err != nil {
			return err
		}
		m.updatePosition(cmd.Axes())
		m.emitted = true
	case cmd.Has(gcode.FieldT) && !m.ditto && m.next != m.extruder:
		m.emitted = true
		return m.toolChange()
	}
	return nil
}

// Convert translates everything read from r to sink. When r can seek,
// the input is read twice: the first pass only estimates the totals used
// for build progress and collects Z triggers, and the second produces
// output.
func (m *Machine) Convert(ctx context.Context, r io.Reader, sink x3g.Sink) error {
	var rewind func() (gcode.Reader, error)
	if rs, ok := r.(io.ReadSeeker); ok {
		rewind = func() (gcode.Reader, error) {
			if _, err := rs.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewind input: %w", err)
			}
			return gcode.NewParser(rs), nil
		}
	}
	return m.convert(ctx, gcode.NewParser(r), rewind, sink)
}

// ConvertCommands translates already parsed commands to sink, always in
// two passes.
func (m *Machine) ConvertCommands(ctx context.Context, cmds []gcode.Command, sink x3g.Sink) error {
	cr := &gcode.CommandsReader{Commands: cmds}
	return m.convert(ctx, cr, func() (gcode.Reader, error) {
		cr.Rewind()
		return cr, nil
	}, sink)
}

func (m *Machine) convert(ctx context.Context, r gcode.Reader, rewind func() (gcode.Reader, error), sink x3g.Sink) error {
	m.ctx = ctx
	defer func() {
		m.ctx = context.Background()
		// later lines may still define triggers
		m.loadMacros = true
		m.runMacros = true
	}()

	dual := rewind != nil
	if dual {
		m.quiet = true
		m.runMacros = false
		m.enc.Sink = nil
	} else {
		m.enc.Sink = sink
	}

	for {
		err := m.pass(ctx, r)
		if err != nil {
			m.quiet = false
			return err
		}
		if !dual {
			break
		}
		dual = false

		if r, err = rewind(); err != nil {
			return err
		}
		m.quiet = false
		m.enc.Sink = sink
		m.reset(false)
		m.loadMacros = false
		m.runMacros = true
		m.pausePending = len(m.zCommands) > 0
		m.applyFilamentOverrides()
	}

	if m.verbose {
		m.logSummary()
	}
	return nil
}

func (m *Machine) pass(ctx context.Context, p gcode.Reader) error {
	if m.opts.Preamble != "" {
		if err := m.startBuild(m.opts.Preamble); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, err := p.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		err = m.Exec(&cmd)
		if errors.Is(err, ErrEndOfFile) {
			break
		}
		if err != nil {
			return err
		}
	}

	if m.state == Running {
		m.state = Ended
		if !m.opts.NoEnd {
			if err := m.setBuildProgress(100); err != nil {
				return err
			}
			if err := m.enc.EndBuild(); err != nil {
				return err
			}
		}
	}

	m.total = m.acc
	m.total.Bytes = m.enc.Count()
	return nil
}

// Summary is the estimate of a finished conversion.
type Summary struct {
	// Length is the filament extruded, in mm.
	Length float64
	Time   time.Duration
	Bytes  int64
}

// Summary returns the estimates of the last completed pass.
func (m *Machine) Summary() Summary {
	return Summary{
		Length: m.total.A + m.total.B,
		Time:   time.Duration(m.total.Time * float64(time.Second)),
		Bytes:  m.total.Bytes,
	}
}

func (m *Machine) logSummary() {
	s := m.Summary()
	m.infof("Extrusion length: %#0.3f metres", s.Length/1000)

	secs := int64(s.Time / time.Second)
	var b strings.Builder
	b.WriteString("Estimated print time: ")
	if h := secs / 3600; h > 0 {
		fmt.Fprintf(&b, "%d hours ", h)
	}
	if mins := secs % 3600 / 60; mins > 0 {
		fmt.Fprintf(&b, "%d minutes ", mins)
	}
	fmt.Fprintf(&b, "%d seconds", secs%60)
	m.infof("%s", b.String())

	m.infof("X3G output filesize: %d bytes", s.Bytes)
}

// Unknown returns the axes whose position is not known.
func (m *Machine) Unknown() coord.Axes { return m.mask &^ m.known }
