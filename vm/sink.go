package vm

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError

	// SeverityControl marks in-band requests from the input, such as
	// the @clear_cancel macro, meant for whoever drives the device.
	SeverityControl
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityControl:
		return "control"
	}
	return "info"
}

// Diagnostic is a message produced while translating. Line is zero for
// messages that are not tied to an input line.
type Diagnostic struct {
	Line     int
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return d.Message
	}
	return fmt.Sprintf("(line %d) %s", d.Line, d.Message)
}

// DiagnosticSink receives diagnostics as they happen.
type DiagnosticSink interface {
	Diagnostic(d Diagnostic)
}

// DiagnosticFunc adapts a function to a DiagnosticSink.
type DiagnosticFunc func(d Diagnostic)

func (fn DiagnosticFunc) Diagnostic(d Diagnostic) { fn(d) }

// LogSink writes diagnostics to a logger.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Diagnostic(d Diagnostic) {
	l := s.Log
	if l == nil {
		l = logrus.StandardLogger()
	}
	e := l.WithField("severity", d.Severity.String())
	if d.Line > 0 {
		e = e.WithField("line", d.Line)
	}
	switch d.Severity {
	case SeverityError:
		e.Error(d.Message)
	case SeverityWarning:
		e.Warn(d.Message)
	case SeverityControl:
		e.Debug(d.Message)
	default:
		e.Info(d.Message)
	}
}

func (m *Machine) report(sev Severity, format string, args ...interface{}) {
	if m.quiet {
		return
	}
	m.diag.Diagnostic(Diagnostic{Line: m.line, Severity: sev, Message: fmt.Sprintf(format, args...)})
}

func (m *Machine) errorf(format string, args ...interface{}) {
	m.report(SeverityError, format, args...)
}

func (m *Machine) warnf(format string, args ...interface{}) {
	m.report(SeverityWarning, format, args...)
}

// infof reports output that is not tied to a line, like the debug macros.
func (m *Machine) infof(format string, args ...interface{}) {
	if m.quiet {
		return
	}
	m.diag.Diagnostic(Diagnostic{Severity: SeverityInfo, Message: fmt.Sprintf(format, args...)})
}

func (m *Machine) control(msg string) {
	if m.quiet {
		return
	}
	m.diag.Diagnostic(Diagnostic{Line: m.line, Severity: SeverityControl, Message: msg})
}
