// Package reprap makes an x3g device look like a RepRap firmware printer
// to host software: G-code lines go in, RepRap style text replies come out.
package reprap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mastercactapus/gpx/coord"
	"github.com/mastercactapus/gpx/eeprom"
	"github.com/mastercactapus/gpx/gcode"
	"github.com/mastercactapus/gpx/machine"
	"github.com/mastercactapus/gpx/machine/mightyboard"
	"github.com/mastercactapus/gpx/vm"
	"github.com/mastercactapus/gpx/x3g"
	"github.com/sirupsen/logrus"
)

// Device is a connected controller.
type Device interface {
	SendContext(ctx context.Context, frame []byte) (*mightyboard.Response, error)
	vm.Device
}

var _ Device = (*mightyboard.Conn)(nil)

type temperature struct {
	current, target uint16
}

// Translator runs G-code lines against a device and renders the results
// as RepRap replies. It is not safe for concurrent use.
type Translator struct {
	dev Device
	m   *vm.Machine
	enc *x3g.Encoder
	log logrus.FieldLogger
	ctx context.Context

	verbose bool

	// HostEvents is set when cancellation also arrives out of band
	// through Abort, rather than only in the line stream.
	HostEvents bool

	out strings.Builder
	cmd gcode.Command

	wait Wait

	listingFiles        bool
	getPosWhenReady     bool
	cancelPending       bool
	okPending           bool
	waitClearedByCancel bool
	clearOnEstop        bool

	files []string
	start time.Time // ignore build status until then
	now   func() time.Time

	tools [2]temperature
	bed   temperature
}

// NewTranslator returns a Translator sending to dev. The options are
// adjusted for line at a time online use.
func NewTranslator(dev Device, p *machine.Profile, opts vm.Options) *Translator {
	t := &Translator{
		dev:     dev,
		log:     opts.Log,
		ctx:     context.Background(),
		verbose: opts.Verbose,
		now:     time.Now,
	}
	if t.log == nil {
		t.log = logrus.StandardLogger()
	}
	opts.Framing = true
	opts.Online = true
	opts.Interactive = true
	opts.M106AlwaysValve = true
	opts.Diagnostics = vm.DiagnosticFunc(t.diagnostic)
	opts.Device = dev

	t.m = vm.New(p, opts)
	t.m.SetSink(t)
	t.enc = x3g.NewEncoder(t, true)
	return t
}

// Machine returns the translator state.
func (t *Translator) Machine() *vm.Machine { return t.m }

// Waiting returns the conditions being waited on.
func (t *Translator) Waiting() Wait { return t.wait }

// ListingFiles reports whether an M20 listing is in progress; call
// NextFile until it is not.
func (t *Translator) ListingFiles() bool { return t.listingFiles }

// Cancelling reports whether any party to a cancel has yet to finish.
func (t *Translator) Cancelling() bool {
	return t.cancelPending || t.wait&(WaitCancelSync|WaitBotCancel) != 0
}

func (t *Translator) printf(format string, args ...interface{}) {
	fmt.Fprintf(&t.out, format, args...)
}

func (t *Translator) discard() { t.out.Reset() }

func (t *Translator) endsWithNewline() bool {
	s := t.out.String()
	return len(s) > 0 && s[len(s)-1] == '\n'
}

// take returns and clears the pending reply.
func (t *Translator) take() string {
	s := t.out.String()
	t.out.Reset()
	return s
}

// Connect prepares the session and returns the greeting.
func (t *Translator) Connect(ctx context.Context) string {
	t.ctx = ctx
	t.m.StartConvert("")
	t.m.Abandon(false)

	// firmware that clears the position on an emergency stop must not be
	// sent absolute moves until the position is defined again
	t.clearOnEstop = false
	variant, version, err := t.dev.FirmwareVersion(ctx)
	if err != nil {
		t.log.WithError(err).Warn("query firmware version")
	} else if em, ok := eeprom.Find(variant, version); ok {
		if mp, ok := em.Find("CLEAR_FOR_ESTOP"); ok {
			b, err := eeprom.Read8(ctx, t.dev, mp.Address)
			if err != nil {
				t.log.WithError(err).Warn("read CLEAR_FOR_ESTOP")
			}
			t.clearOnEstop = err == nil && b != 0
		}
	}

	t.discard()
	return "start"
}

func (t *Translator) clearStateForCancel() {
	t.m.Abandon(t.clearOnEstop)
	if t.wait != 0 {
		t.waitClearedByCancel = true
		t.log.Debug("wait cleared by cancel")
	}
	t.wait = WaitEmptyQueue
	t.getPosWhenReady = false
}

// Send implements x3g.Sink, exchanging frame with the device and
// recording what the reply means for the host.
func (t *Translator) Send(frame []byte) error {
	if t.okPending {
		t.okPending = false
		t.printf("ok")
	}

	if len(frame) == 0 {
		t.emptyFrame()
		return nil
	}

	var command x3g.Opcode
	var tool uint8
	if len(frame) > 3 {
		command, tool = x3g.Opcode(frame[2]), frame[3]
	} else if len(frame) > 2 {
		command = x3g.Opcode(frame[2])
	}

	// queued commands go nowhere while the host catches up with a cancel
	if t.cancelPending && !command.IsQuery() {
		return nil
	}

	res, err := t.dev.SendContext(t.ctx, frame)
	if err != nil {
		t.log.WithError(err).WithField("command", command.String()).Debug("exchange failed")
		return err
	}

	if !command.IsQuery() {
		t.wait.set(WaitBuffer, false)
	}

	switch command {
	case x3g.OpClearBuffer, x3g.OpAbort, x3g.OpReset:
		t.clearStateForCancel()
		t.wait |= WaitBotCancel

	case x3g.OpToolQuery:
		t.toolQuery(res)

	case x3g.OpIsReady:
		if res.Ready {
			t.wait.set(WaitEmptyQueue|WaitButton, false)
			if t.getPosWhenReady {
				if err := t.enc.ExtendedPosition(); err != nil {
					return err
				}
				t.getPosWhenReady = false
			}
		}

	case x3g.OpCaptureToFile:
		if t.isM(28) && t.cmd.Has(gcode.FieldArg) {
			t.printf("\nWriting to file: %s", t.cmd.Arg)
		}

	case x3g.OpEndCapture:
		t.printf("\nDone saving file")

	case x3g.OpPlayBackCapture:
		if res.SD == mightyboard.SDFileNotFound {
			t.printf("\nError:  Not SD printing file not found")
		} else {
			// the previous build may still report cancelled for a moment
			t.discard()
			t.start = t.now().Add(3 * time.Second)
			t.wait |= WaitStart
		}

	case x3g.OpNextFilename:
		t.nextFilename(res)

	case x3g.OpExtendedPosition:
		t.position(res.Position)

	case x3g.OpMotherboardStatus:
		return t.boardStatus(res.BoardFlags)

	case x3g.OpBuildStatistics:
		t.buildStatistics(res.Build)

	case x3g.OpAdvancedVersion:
		t.version(res)

	case x3g.OpWaitForTool:
		t.discard()
		t.log.WithField("tool", tool).Debug("waiting for extruder")
		if tool == 0 {
			t.wait |= WaitEmptyQueue | WaitExtruderA
		} else {
			t.wait |= WaitEmptyQueue | WaitExtruderB
		}

	case x3g.OpWaitForPlatform:
		t.discard()
		t.log.Debug("waiting for platform")
		t.wait |= WaitEmptyQueue | WaitPlatform

	case x3g.OpHomeMin, x3g.OpHomeMax, x3g.OpRecallHome:
		t.log.Debug("homing, position follows once the queue drains")
		t.discard()
		t.wait |= WaitEmptyQueue
		t.getPosWhenReady = true

	case x3g.OpDelay:
		t.discard()
		t.wait |= WaitEmptyQueue

	case x3g.OpWaitForButton, x3g.OpDisplayMessage:
		t.discard()
		t.log.Debug("waiting for button")
		t.wait |= WaitButton
	}
	return nil
}

func (t *Translator) isM(code int) bool {
	return t.cmd.Has(gcode.FieldM) && t.cmd.M == code
}

// emptyFrame handles lines that produced no device command but still owe
// the host a reply.
func (t *Translator) emptyFrame() {
	if !t.cmd.Has(gcode.FieldM) {
		return
	}
	switch t.cmd.M {
	case 23:
		// hosts expect M23 to ignore case
		sel := t.m.SelectedFile()
		for _, f := range t.files {
			if strings.EqualFold(f, sel) {
				sel = f
				t.m.SelectFile(f)
				break
			}
		}
		// there is no way to ask for the size
		t.printf("\nFile opened:%s Size:%d\nFile selected:%s", sel, 0, sel)

	case 105:
		ext := t.m.Extruder()
		t.printf(" T:%d /%d", t.tools[ext].current, t.tools[ext].target)
		t.printf(" B:%d /%d", t.bed.current, t.bed.target)
		if n := t.m.Profile().ExtruderCount; n > 1 {
			for i := 0; i < n && i < len(t.tools); i++ {
				t.printf(" T%d:%d /%d", i, t.tools[i].current, t.tools[i].target)
			}
		}
		// x3g has no heater power
		t.printf(" @:0 B@:0")

	case 400:
		t.wait |= WaitEmptyQueue
	}
}

func (t *Translator) toolQuery(res *mightyboard.Response) {
	waitFor := WaitExtruderA
	if res.Tool != 0 {
		waitFor = WaitExtruderB
	}
	switch res.Query {
	case x3g.ToolTemperature:
		if int(res.Tool) < len(t.tools) {
			t.tools[res.Tool].current = res.Temperature
		} else {
			t.discard()
			t.printf("Error: Bot responded with unknown extruder_id %d.\n", res.Tool)
		}

	case x3g.ToolIsReady:
		t.wait.set(waitFor, !res.Ready)

	case x3g.ToolPlatformTemperature:
		t.bed.current = res.Temperature

	case x3g.ToolTargetTemperature:
		// nothing to wait for once the heater is off
		if t.wait != 0 && !t.wait.Has(WaitEmptyQueue) && res.Temperature == 0 {
			t.wait.set(waitFor, false)
		}
		if int(res.Tool) < len(t.tools) {
			t.tools[res.Tool].target = res.Temperature
		} else {
			t.discard()
			t.printf("Error: Bot responded with unknown extruder_id %d.\n", res.Tool)
		}

	case x3g.ToolPlatformTarget:
		t.bed.target = res.Temperature
		if t.wait != 0 && !t.wait.Has(WaitEmptyQueue) && res.Temperature == 0 {
			t.wait.set(WaitPlatform, false)
		}

	case x3g.ToolIsPlatformReady:
		t.wait.set(WaitPlatform, !res.Ready)
	}
}

func (t *Translator) nextFilename(res *mightyboard.Response) {
	if !t.listingFiles && t.isM(21) {
		// M21 is emulated by restarting the listing
		if res.SD == mightyboard.SDOK {
			t.printf("\nSD card ok")
		} else {
			t.printf("\nSD init fail")
		}
		return
	}

	if !t.listingFiles {
		t.printf("\nBegin file list\n")
		t.listingFiles = true
		t.files = t.files[:0]
	}
	if res.Filename == "" {
		t.printf("End file list")
		t.listingFiles = false
		return
	}
	t.printf("%s", res.Filename)
	t.files = append(t.files, res.Filename)
}

// NextFile continues an M20 listing.
func (t *Translator) NextFile(ctx context.Context) string {
	t.ctx = ctx
	err := t.enc.NextFilename(false)
	if err != nil {
		t.log.WithError(err).Warn("list sd card")
		t.listingFiles = false
	}
	return t.take()
}

func (t *Translator) position(pos mightyboard.Position) {
	p := t.m.Profile()
	mm := coord.Point{
		X: float64(pos.Steps[0]) / p.X.StepsPerMM,
		Y: float64(pos.Steps[1]) / p.Y.StepsPerMM,
		Z: float64(pos.Steps[2]) / p.Z.StepsPerMM,
		A: float64(pos.Steps[3]) / p.A.StepsPerMM,
		B: float64(pos.Steps[4]) / p.B.StepsPerMM,
	}
	e := mm.A
	if t.m.Extruder() == 1 {
		e = mm.B
	}
	t.printf(" X:%0.2f Y:%0.2f Z:%0.2f E:%0.2f", mm.X, mm.Y, mm.Z, e)

	// a later G92 may leave out the axes we never learned
	if t.getPosWhenReady {
		t.m.Assume(mm)
	}
}

func (t *Translator) boardStatus(f mightyboard.BoardFlags) error {
	cancel := mightyboard.StatusError{Status: x3g.StatusCancelBuild}
	switch {
	case f == 0:
		t.wait.set(WaitButton, false)
	case f&mightyboard.BoardBuildCancelling != 0:
		return cancel
	case f&mightyboard.BoardHeatShutdown != 0:
		t.discard()
		t.printf("Error:  Heaters were shutdown after 30 minutes of inactivity")
		return cancel
	case f&mightyboard.BoardPowerError != 0:
		t.discard()
		t.printf("Error:  Error detected in system power")
		return cancel
	}
	return nil
}

func (t *Translator) buildStatistics(st mightyboard.BuildStats) {
	if t.isM(105) {
		// statistics lead the M105 query sequence
		t.tools = [2]temperature{}
		t.bed = temperature{}
	}
	if t.wait.Has(WaitBotCancel) {
		switch st.State {
		case mightyboard.BuildRunning, mightyboard.BuildPaused, mightyboard.BuildSleeping:
		default:
			t.wait.set(WaitBotCancel, false)
		}
	}

	if !t.wait.Has(WaitStart) && !t.isM(27) {
		// routine check, or clearing a wait
		switch st.State {
		case mightyboard.BuildPaused:
			t.wait |= WaitUnpause
			t.printf("\n// echo: Waiting for unpause button on the LCD panel\n")
		case mightyboard.BuildNone, mightyboard.BuildRunning:
			if t.wait.Has(WaitUnpause) {
				t.wait |= WaitEmptyQueue
			}
			fallthrough
		default:
			t.wait.set(WaitUnpause, false)
		}
		return
	}

	if !t.start.IsZero() && st.State != mightyboard.BuildRunning {
		now := t.now()
		if now.Before(t.start) {
			// a clock jump must not leave us ignoring the status for good
			if t.start.Sub(now) > 4*time.Second {
				t.start = time.Time{}
				t.wait.set(WaitStart, false)
			}
			return
		}
	}

	switch st.State {
	case mightyboard.BuildNone:
		t.printf("\nNot SD printing\n")
	case mightyboard.BuildRunning:
		t.start = time.Time{}
		t.wait.set(WaitStart, false)
		t.printf("\nSD printing byte on line %d/0", st.Line)
	case mightyboard.BuildCancelled:
		t.printf("\nSD printing cancelled.\n")
		t.wait = 0
		t.getPosWhenReady = false
		t.printf("\nDone printing file\n")
	case mightyboard.BuildFinished:
		t.printf("\nDone printing file\n")
	case mightyboard.BuildPaused:
		t.printf("\nSD printing paused at line %d\n", st.Line)
	case mightyboard.BuildSleeping:
		t.printf("\nSD printing sleeping at line %d\n", st.Line)
	}
}

func (t *Translator) version(res *mightyboard.Response) {
	variant, url := "Unknown", "Unknown"
	switch res.Variant {
	case eeprom.VariantMakerbot:
		variant = "Makerbot"
		url = "https://support.makerbot.com/learn/earlier-products/replicator-original/updating-firmware-for-the-makerbot-replicator-via-replicatorg_13302"
	case eeprom.VariantSailfish:
		variant = "Sailfish"
		url = "http://www.sailfishfirmware.com"
	}
	if t.isM(115) {
		p := t.m.Profile()
		// the protocol version is of the RepRap dialect we emulate
		t.printf(" PROTOCOL_VERSION:0.1 FIRMWARE_NAME:%s FIRMWARE_VERSION:%d.%d FIRMWARE_URL:%s MACHINE_TYPE:%s EXTRUDER_COUNT:%d",
			variant, res.Version/100, res.Version%100, url, p.Type, p.ExtruderCount)
		return
	}
	t.printf(" %s v%d.%d", variant, res.Version/100, res.Version%100)
}

// diagnostic renders translator messages as echo lines, and acts on the
// in-band control requests.
func (t *Translator) diagnostic(d vm.Diagnostic) {
	if d.Severity == vm.SeverityControl {
		switch strings.ToLower(d.Message) {
		case "@clear_cancel":
			if t.HostEvents && !t.cancelPending && t.m.State() == vm.Running {
				// the cancel G-code beat the cancel event
				t.log.Debug("got @clear_cancel, waiting for abort call")
				t.wait |= WaitCancelSync
			} else {
				t.wait |= WaitEmptyQueue
			}
			t.cancelPending = false
		case "@iostatus":
			t.printf("listingFiles: %d\n", b2i(t.listingFiles))
			t.printf("getPosWhenReady: %d\n", b2i(t.getPosWhenReady))
			t.printf("cancelPending: %d\n", b2i(t.cancelPending))
			t.printf("okPending: %d\n", b2i(t.okPending))
			t.printf("waitClearedByCancel: %d\n", b2i(t.waitClearedByCancel))
			t.printf("clear_on_estop_set: %d\n", b2i(t.clearOnEstop))
		}
		return
	}

	t.log.WithField("severity", d.Severity.String()).Debug(d.Message)
	if t.okPending {
		t.okPending = false
		t.printf("ok")
	}
	if t.out.Len() > 0 && !t.endsWithNewline() {
		t.printf("\n")
	}
	t.printf("// echo: %s\n", d.String())
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// convert runs one line through the machine, adding an ok when it ended
// a wait.
func (t *Translator) convert(line string) error {
	waiting := t.wait != 0
	if waiting {
		t.log.Debug("line arrived while waiting")
	}

	t.cmd = gcode.ParseLine(line)
	cmd := t.cmd
	err := t.m.Exec(&cmd)

	if t.okPending {
		t.printf("ok")
	} else if waiting && t.wait == 0 {
		t.printf("\nok")
	}
	t.okPending = false
	return err
}

// WriteLine translates and sends one line from the host, returning the
// reply. The returned error is what the device or translator reported,
// already rendered into the reply.
func (t *Translator) WriteLine(ctx context.Context, line string) (string, error) {
	t.ctx = ctx
	t.okPending = t.wait == 0
	return t.finish(t.convert(line))
}

// DoWait polls the device for whatever is being waited on. It returns
// temperatures while still waiting, and "ok" once done.
func (t *Translator) DoWait(ctx context.Context) (string, error) {
	t.ctx = ctx
	return t.finish(t.doWait())
}

func (t *Translator) doWait() error {
	var err error
	w := func(fn func() error) {
		if err == nil {
			err = fn()
		}
	}
	query := func(tool uint8, q x3g.ToolQueryCode) func() error {
		return func() error { return t.enc.ToolQuery(tool, q) }
	}

	if !t.wait.Has(WaitCancelSync) {
		if t.wait.Has(WaitUnpause) {
			w(t.enc.BuildStatistics)
		}
		// the queue drains before anything else is worth asking
		if t.wait&(WaitEmptyQueue|WaitButton) != 0 {
			w(t.enc.IsReady)
		}
		if !t.wait.Has(WaitEmptyQueue) {
			if t.wait&(WaitStart|WaitBotCancel) != 0 {
				w(t.enc.BuildStatistics)
			}
			if t.wait.Has(WaitPlatform) {
				w(query(0, x3g.ToolIsPlatformReady))
			}
			if t.wait.Has(WaitExtruderA) {
				w(query(0, x3g.ToolIsReady))
			}
			if t.wait.Has(WaitExtruderB) {
				w(query(1, x3g.ToolIsReady))
			}
		}
	}
	if err != nil {
		return err
	}

	if t.wait != 0 {
		if t.verbose {
			t.printf("// echo: waiting = 0x%x\n", uint16(t.wait))
		}
		return t.convert("M105")
	}
	t.discard()
	t.printf("ok")
	return nil
}

// finish renders err into the reply and returns it.
func (t *Translator) finish(err error) (string, error) {
	waiting := t.wait != 0
	t.m.Continue()

	// give the host temperatures while it waits
	if err == nil && waiting && t.out.Len() == 0 {
		t.log.Debug("implicit M105")
		err = t.convert("M105")
	}

	err = t.renderError(err)

	if waiting && t.wait == 0 {
		t.log.Debug("add ok for wait cleared")
		if t.out.Len() > 0 && !t.endsWithNewline() {
			t.printf("\n")
		}
		t.printf("ok")
	}
	return strings.TrimSuffix(t.take(), "\n"), err
}

var statusText = map[x3g.Status]string{
	x3g.StatusGenericError:    "Error: X3G generic packet error",
	x3g.StatusCRCMismatch:     "Error: X3G checksum mismatch",
	x3g.StatusQueryTooBig:     "Error: X3G query packet too big",
	x3g.StatusUnsupported:     "Error: X3G command not supported or recognized",
	x3g.StatusDownstreamTO:    "Error: X3G timeout downstream",
	x3g.StatusToolLockTimeout: "Error: X3G timeout for tool lock",
	x3g.StatusBotBuilding:     "SD printing",
	x3g.StatusBotOverheat:     "Error: RC_BOT_OVERHEAT Printer reports overheat condition",
	x3g.StatusPacketTimeout:   "Error: timeout",
}

func (t *Translator) renderError(err error) error {
	if err == nil || errors.Is(err, vm.ErrEndOfFile) {
		return nil
	}
	t.log.WithError(err).Debug("line failed")

	var ioe *mightyboard.IOError
	if errors.As(err, &ioe) {
		t.discard()
		switch ioe.Kind {
		case mightyboard.KindOS:
			t.printf("Error: OS error trying to access X3G port")
		case mightyboard.KindTimeout:
			t.printf("Error: Timeout on X3G port")
		default:
			t.printf("Error: Serial communication error on X3G port. code = %s", ioe.Kind)
		}
		return err
	}

	status, ok := mightyboard.StatusOf(err)
	if !ok {
		t.discard()
		t.printf("Error: GPX error")
		return err
	}

	switch status {
	case x3g.StatusBufferOverflow:
		t.wait |= WaitBuffer
		t.discard()
		t.printf("Status: Buffer full")

	case x3g.StatusCancelBuild:
		if t.wait.Has(WaitBotCancel) {
			// the abort we sent has taken
			t.wait.set(WaitBotCancel, false)
			t.log.Debug("cleared waitForBotCancel")
			return nil
		}
		// the device cancelled on its own; queued lines are dropped until
		// the host sends @clear_cancel
		t.log.Debug("bot cancelled, now waiting for @clear_cancel")
		t.cancelPending = true
		t.clearStateForCancel()
		t.printf("\nBuild cancelled")

	default:
		t.discard()
		if s, ok := statusText[status]; ok {
			t.printf("%s", s)
		} else {
			t.printf("Error: Unknown error code: %d", byte(status))
		}
	}
	return err
}

// Abort is the host's out of band request to stop. It drops the device
// queue unless the device already cancelled.
func (t *Translator) Abort(ctx context.Context) (string, error) {
	t.ctx = ctx
	t.wait.set(WaitCancelSync, false)
	if t.cancelPending {
		return t.take(), nil
	}
	return t.finish(t.enc.Abort())
}

// TakeWaitClearedByCancel reports, once, that a cancel ended a wait the
// host still expects an ok for.
func (t *Translator) TakeWaitClearedByCancel() bool {
	v := t.waitClearedByCancel
	t.waitClearedByCancel = false
	return v
}

// ClearBufferWait forgets a full device queue before the next line.
func (t *Translator) ClearBufferWait() { t.wait.set(WaitBuffer, false) }
