// Package walker drives repeated sender resolution over one thread's
// stack, from a starting frame down to the entry boundary. Walks are
// lock-free and read-mostly: each walk owns its register map, and safety
// is obtained by gating every step through the frame safety validator
// when the walk might race the target thread.
package walker

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/frame"
)

const (
	// DefaultMaxFrames bounds a single walk. A chain deeper than this on
	// a real stack means the frame linkage is corrupt.
	DefaultMaxFrames = 1024
)

// ErrStackUnavailable is returned when a gated walk meets a frame that
// cannot be trusted. Callers fall back to a degraded outcome: skip the
// sample, report the stack as unavailable. They must never proceed to
// dereference.
var ErrStackUnavailable = errors.New("stack unavailable")

// Walker walks one thread's stack. A Walker may run multiple walks; each
// walk gets a fresh register map and runs to completion or fails, with no
// cancellation model.
type Walker struct {
	thread    *frame.Thread
	env       *frame.Env
	logger    zerolog.Logger
	id        uuid.UUID
	maxFrames int
	updateMap bool
	walkCont  bool
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the structured logger walk events are reported to.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Walker) {
		w.logger = logger
	}
}

// WithMaxFrames bounds the number of frames a single walk may visit.
func WithMaxFrames(n int) Option {
	return func(w *Walker) {
		w.maxFrames = n
	}
}

// WithRegisterUpdates makes walks record callee-saved register spill
// locations in the register map.
func WithRegisterUpdates() Option {
	return func(w *Walker) {
		w.updateMap = true
	}
}

// WithContinuationWalk makes walks descend into continuation stacks when
// a return barrier is met, instead of skipping to the bottom sender.
func WithContinuationWalk() Option {
	return func(w *Walker) {
		w.walkCont = true
	}
}

// New creates a Walker over the given thread and environment.
func New(th *frame.Thread, env *frame.Env, options ...Option) *Walker {
	w := &Walker{
		thread:    th,
		env:       env,
		logger:    zerolog.Nop(),
		id:        uuid.Must(uuid.NewV4()),
		maxFrames: DefaultMaxFrames,
	}
	for _, opt := range options {
		opt(w)
	}
	w.logger = w.logger.With().Str("walk_id", w.id.String()).Logger()
	return w
}

// ID returns the walker's identifier, used to attribute samples and logs.
func (w *Walker) ID() uuid.UUID { return w.id }

// Walk visits frames from start down to the entry boundary, calling
// visit for each. The visit callback returns false to stop early. The
// start frame and every sender must already be trustworthy: this is the
// walk used by the owning thread at a safepoint. For asynchronous
// observers use WalkSafe.
func (w *Walker) Walk(start frame.Frame, visit func(f *frame.Frame) bool) error {
	return w.walk(start, visit, false)
}

// WalkSafe is Walk with every frame gated through the frame safety
// validator before it is visited. When a frame cannot be trusted the walk
// is abandoned and ErrStackUnavailable is returned; the visit callback
// only ever observes frames that passed validation.
func (w *Walker) WalkSafe(start frame.Frame, visit func(f *frame.Frame) bool) error {
	return w.walk(start, visit, true)
}

func (w *Walker) walk(start frame.Frame, visit func(f *frame.Frame) bool, gated bool) error {
	m := frame.NewRegisterMap(w.thread, w.updateMap, w.walkCont)
	f := start
	for n := 0; n < w.maxFrames; n++ {
		// The oldest entry frame has no sender to validate, so the gate
		// does not apply to it.
		last := f.IsFirstFrame(w.thread, w.env)
		if gated && !last && !f.SafeForSender(w.thread, w.env) {
			w.logger.Warn().
				Uint64("sp", uint64(f.SP())).
				Uint64("fp", uint64(f.FP())).
				Uint64("pc", uint64(f.PC())).
				Msg("frame failed safety validation; abandoning walk")
			return ErrStackUnavailable
		}
		if !visit(&f) {
			return nil
		}
		if last {
			w.logger.Debug().Int("frames", n+1).Msg("walk reached the entry boundary")
			return nil
		}
		f = f.Sender(m, w.thread, w.env)
	}
	return fmt.Errorf("walk exceeded %d frames", w.maxFrames)
}

// Sample captures the logical pc of every frame on the stack, newest
// first, using a gated walk. Returns ErrStackUnavailable when the stack
// cannot be trusted; profiling callers then skip the sample.
func (w *Walker) Sample(start frame.Frame) ([]code.PC, error) {
	var pcs []code.PC
	err := w.WalkSafe(start, func(f *frame.Frame) bool {
		pcs = append(pcs, f.PC())
		return true
	})
	if err != nil {
		return nil, err
	}
	return pcs, nil
}

// Frames collects every frame on the stack, newest first, using a gated
// walk.
func (w *Walker) Frames(start frame.Frame) ([]frame.Frame, error) {
	var frames []frame.Frame
	err := w.WalkSafe(start, func(f *frame.Frame) bool {
		frames = append(frames, *f)
		return true
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}
