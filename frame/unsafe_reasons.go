package frame

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/cloudcmds/framewalk/code"
)

// UnsafeReasons explains a SafeForSender rejection for diagnostics. It
// re-runs the primary probes, collecting every failure instead of
// short-circuiting, and returns nil when the frame is safe. The advisory
// contract is unchanged: callers wanting a verdict use SafeForSender;
// this exists for crash reports and tooling.
func UnsafeReasons(f *Frame, th *Thread, env *Env) error {
	if f.SafeForSender(th, env) {
		return nil
	}

	var result *multierror.Error
	appendf := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if !th.Bounds.InUsableStack(f.sp) {
		if th.Bounds.InGuard(f.sp) {
			appendf("sp %#x is in guard stack memory", uint64(f.sp))
		} else {
			appendf("sp %#x is outside usable stack memory", uint64(f.sp))
		}
	}
	if !th.Bounds.InStackRangeIncl(f.unextendedSP, f.sp) {
		appendf("unextended sp %#x is not within [sp, stack base)", uint64(f.unextendedSP))
	}
	if !th.Bounds.InStackRangeExcl(f.fp, f.sp) {
		appendf("fp %#x is not within (sp, stack base)", uint64(f.fp))
	} else if !th.Bounds.InFullStack(f.fp.Add(ReturnAddrOffset)) {
		appendf("return address slot implied by fp %#x is outside the stack", uint64(f.fp))
	}

	if f.region == nil {
		if ret, ok := th.Mem.TryWord(f.fp.Add(ReturnAddrOffset)); ok && ret == 0 {
			appendf("native frame return address is null")
		}
	} else {
		if !f.region.FrameCompleteAt(f.pc) {
			switch f.region.Kind {
			case code.KindCompiled, code.KindAdapter, code.KindRuntimeStub:
				appendf("%s region %q is not frame-complete at pc %#x",
					f.region.Kind, f.region.Name, uint64(f.pc))
			}
		}
		if !f.region.Contains(f.pc) {
			appendf("pc %#x is outside region %q", uint64(f.pc), f.region.Name)
		}
		if !f.IsInterpreted() && !f.IsEntry() && !f.IsOptimizedEntry() && f.region.FrameSize <= 0 {
			appendf("region %q declares no frame size", f.region.Name)
		}
	}

	if result.ErrorOrNil() == nil {
		// The primary probes passed; the rejection came from sender
		// construction or sender-region vetting.
		appendf("provisional sender failed validation")
	}
	return result.ErrorOrNil()
}
