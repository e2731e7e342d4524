// Package dump renders walked frames for humans: a one-line-per-frame
// table for walk output and a named-slot listing for interpreted frames,
// used by crash-style diagnostics and the framewalk command.
package dump

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/cloudcmds/framewalk/frame"
)

var (
	kindColor   = color.New(color.FgCyan)
	addrColor   = color.New(color.FgYellow)
	regionColor = color.New(color.FgGreen)
	deoptColor  = color.New(color.FgRed)
)

func frameKind(f *frame.Frame) string {
	switch {
	case f.IsNative():
		return "native"
	default:
		return f.Region().Kind.String()
	}
}

// Frames writes one line per frame, newest first.
func Frames(w io.Writer, frames []frame.Frame) {
	for i, f := range frames {
		name := "<unknown>"
		if f.Region() != nil {
			name = f.Region().Name
		}
		fmt.Fprintf(w, "#%-3d %-16s sp=%s fp=%s pc=%s %s",
			i,
			kindColor.Sprint(frameKind(&f)),
			addrColor.Sprintf("%#x", uint64(f.SP())),
			addrColor.Sprintf("%#x", uint64(f.FP())),
			addrColor.Sprintf("%#x", uint64(f.PC())),
			regionColor.Sprint(name),
		)
		if f.IsDeoptimized() {
			fmt.Fprintf(w, " %s", deoptColor.Sprint("(deoptimized)"))
		}
		fmt.Fprintln(w)
	}
}

// interpSlots is the named header layout of an interpreted frame, top of
// the header first.
var interpSlots = []struct {
	name   string
	offset int
}{
	{"sender_sp", frame.InterpSenderSPOffset},
	{"last_sp", frame.InterpLastSPOffset},
	{"method", frame.InterpMethodOffset},
	{"mirror", frame.InterpMirrorOffset},
	{"mdp", frame.InterpMDPOffset},
	{"cp_cache", frame.InterpCacheOffset},
	{"locals", frame.InterpLocalsOffset},
	{"bcp", frame.InterpBCPOffset},
	{"initial_sp", frame.InterpInitialSPOffset},
}

// FrameDetail writes the raw slot contents of one frame. For interpreted
// frames every named header slot is listed; for other kinds only the
// linkage slots are.
func FrameDetail(w io.Writer, f *frame.Frame, th *frame.Thread) {
	fmt.Fprintf(w, "%s frame sp=%#x unextended_sp=%#x fp=%#x pc=%#x (%s)\n",
		frameKind(f), uint64(f.SP()), uint64(f.UnextendedSP()),
		uint64(f.FP()), uint64(f.PC()), f.DeoptState())

	writeSlot := func(name string, offset int) {
		addr := f.FP().Add(offset)
		if v, ok := th.Mem.TryWord(addr); ok {
			fmt.Fprintf(w, "  %-12s @%s = %s\n", name,
				addrColor.Sprintf("%#x", uint64(addr)),
				addrColor.Sprintf("%#x", uint64(v)))
		} else {
			fmt.Fprintf(w, "  %-12s @%s = <unmapped>\n", name,
				addrColor.Sprintf("%#x", uint64(addr)))
		}
	}

	writeSlot("link", frame.LinkOffset)
	writeSlot("return_addr", frame.ReturnAddrOffset)
	if f.IsInterpreted() {
		for _, s := range interpSlots {
			writeSlot(s.name, s.offset)
		}
	}
	if f.IsEntry() {
		writeSlot("call_wrapper", frame.EntryFrameCallWrapperOffset)
	}
}
