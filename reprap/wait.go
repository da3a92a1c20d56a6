package reprap

import "strings"

// Wait is the set of conditions the translator is waiting on before it
// acknowledges the host.
type Wait uint16

const (
	WaitBuffer Wait = 1 << iota
	WaitExtruderA
	WaitExtruderB
	WaitPlatform
	WaitButton
	WaitEmptyQueue
	WaitStart
	WaitBotCancel
	WaitUnpause
	WaitCancelSync
)

var waitNames = []string{
	"buffer",
	"extruderA",
	"extruderB",
	"platform",
	"button",
	"emptyQueue",
	"start",
	"botCancel",
	"unpause",
	"cancelSync",
}

// Has reports whether every condition in w2 is set.
func (w Wait) Has(w2 Wait) bool { return w&w2 == w2 }

func (w *Wait) set(w2 Wait, on bool) {
	if on {
		*w |= w2
	} else {
		*w &^= w2
	}
}

// Names returns the names of the set conditions.
func (w Wait) Names() []string {
	var res []string
	for i, n := range waitNames {
		if w&(1<<i) != 0 {
			res = append(res, n)
		}
	}
	return res
}

func (w Wait) String() string { return strings.Join(w.Names(), ",") }
