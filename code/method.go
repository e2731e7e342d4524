package code

// BasicKind is the closed set of method result kinds. The result
// extractor switches over it exhaustively; an unrecognized kind is fatal.
type BasicKind uint8

const (
	BasicInvalid BasicKind = 0
	BasicObject  BasicKind = 1
	BasicArray   BasicKind = 2
	BasicBool    BasicKind = 3
	BasicByte    BasicKind = 4
	BasicChar    BasicKind = 5
	BasicShort   BasicKind = 6
	BasicInt     BasicKind = 7
	BasicLong    BasicKind = 8
	BasicFloat   BasicKind = 9
	BasicDouble  BasicKind = 10
	BasicVoid    BasicKind = 11
)

// String returns a display name for the kind.
func (k BasicKind) String() string {
	switch k {
	case BasicObject:
		return "object"
	case BasicArray:
		return "array"
	case BasicBool:
		return "bool"
	case BasicByte:
		return "byte"
	case BasicChar:
		return "char"
	case BasicShort:
		return "short"
	case BasicInt:
		return "int"
	case BasicLong:
		return "long"
	case BasicFloat:
		return "float"
	case BasicDouble:
		return "double"
	case BasicVoid:
		return "void"
	default:
		return "invalid"
	}
}

// Method is the read-only metadata the walker needs about one managed
// method: enough to validate an interpreted frame and decode its result.
type Method struct {
	Name          string
	Result        BasicKind
	Native        bool
	MaxStack      int
	BytecodeStart PC
	BytecodeSize  int

	// MethodHandleIntrinsic marks compiler-generated invocation glue;
	// such methods are never acceptable as reconstructed senders.
	MethodHandleIntrinsic bool
}

// ValidBCP reports whether the saved bytecode pointer implies a bytecode
// offset within the method's bytecode range.
func (m *Method) ValidBCP(bcp PC) bool {
	if m.BytecodeSize <= 0 {
		return false
	}
	return bcp >= m.BytecodeStart && bcp < m.BytecodeStart+PC(m.BytecodeSize)
}
