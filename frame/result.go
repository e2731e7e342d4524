package frame

import (
	"math"

	"github.com/cloudcmds/framewalk/code"
	"github.com/cloudcmds/framewalk/errz"
	"github.com/cloudcmds/framewalk/stack"
)

// ObjRef is a managed-heap object reference. Zero is the nil reference.
type ObjRef uint64

// Value holds one decoded primitive result. Exactly one field is written,
// matching the declared kind.
type Value struct {
	Z bool
	B int8
	C uint16
	S int16
	I int32
	J int64
	F float32
	D float64
}

// Result decodes the typed return value of a completed interpreted frame
// into exactly one of the two outputs: objOut for object and array kinds,
// valOut for primitives. For kind void nothing is read and nothing is
// written. The kind set is closed; an unrecognized kind is fatal.
//
// For native methods the possible return value was pushed to the stack
// before reporting the method exit, and a float or double result was
// staged through a different register convention first, reserving two
// extra stack slots below it.
func (f *Frame) Result(th *Thread, env *Env, kind code.BasicKind, objOut *ObjRef, valOut *Value) {
	if kind == code.BasicVoid {
		return
	}

	m := f.InterpreterFrameMethod(th, env)

	var tos stack.Addr
	if m.Native {
		tos = f.sp
		if kind == code.BasicFloat || kind == code.BasicDouble {
			tos = tos.Add(2 * StackElementWords)
		}
	} else {
		tos = f.InterpreterFrameTOSAddress(th)
	}

	switch kind {
	case code.BasicObject, code.BasicArray:
		var obj ObjRef
		if m.Native {
			obj = ObjRef(f.at(th, InterpOopTempOffset))
		} else {
			obj = ObjRef(th.Mem.Word(tos))
		}
		if env.Heap != nil && !env.Heap.InHeapOrNil(obj) {
			f.fatalf(errz.FaultFrame, "result %#x is not a heap reference", uint64(obj))
		}
		*objOut = obj
	case code.BasicBool:
		valOut.Z = byte(th.Mem.Word(tos)) != 0
	case code.BasicByte:
		valOut.B = int8(th.Mem.Word(tos))
	case code.BasicChar:
		valOut.C = uint16(th.Mem.Word(tos))
	case code.BasicShort:
		valOut.S = int16(th.Mem.Word(tos))
	case code.BasicInt:
		valOut.I = int32(th.Mem.Word(tos))
	case code.BasicLong:
		valOut.J = int64(th.Mem.Word(tos))
	case code.BasicFloat:
		valOut.F = math.Float32frombits(uint32(th.Mem.Word(tos)))
	case code.BasicDouble:
		valOut.D = math.Float64frombits(uint64(th.Mem.Word(tos)))
	default:
		f.fatalf(errz.FaultResultKind, "unrecognized result kind %d", kind)
	}
}
