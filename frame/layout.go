package frame

// Fixed slot layout, in words. Every frame kind has a closed, ABI-fixed
// layout; these offsets are the whole contract between the code generator
// and the walker. Offsets are relative to fp unless noted otherwise.
const (
	// LinkOffset is the saved caller fp.
	LinkOffset = 0
	// ReturnAddrOffset is the return address pushed by the call.
	ReturnAddrOffset = 1
	// SenderSPOffset is the sender's raw sp. For compiled frames the saved
	// fp lives at senderSP - SenderSPOffset.
	SenderSPOffset = 2

	// Interpreted frames grow a header below fp.
	InterpSenderSPOffset  = -1 // sender sp before callee-inserted locals
	InterpLastSPOffset    = -2 // top of expression stack, 0 while unset
	InterpMethodOffset    = -3 // method metadata pointer
	InterpMirrorOffset    = -4
	InterpMDPOffset       = -5
	InterpCacheOffset     = -6 // constant-pool cache pointer
	InterpLocalsOffset    = -7 // pointer to the locals array
	InterpBCPOffset       = -8 // saved bytecode pointer
	InterpInitialSPOffset = -9

	// The monitor block sits between the header and the expression stack.
	InterpMonitorBlockTopOffset    = InterpInitialSPOffset
	InterpMonitorBlockBottomOffset = InterpInitialSPOffset

	// Native method frames stage results through extra slots above fp.
	InterpOopTempOffset       = 2
	InterpResultHandlerOffset = 3

	// Entry frames record the call wrapper above fp.
	EntryFrameCallWrapperOffset = 2

	// PCReturnOffset locates the physical return-address slot relative to
	// sp: the word immediately below it.
	PCReturnOffset = -1
)

// StackElementWords is the width of one expression-stack element in words.
const StackElementWords = 1

// interpFrameSlackWords bounds how far fp may sit above the unextended sp
// beyond the method's declared operand-stack depth. Deliberately loose:
// it exists to reject wild pointers, not to measure frames.
const interpFrameSlackWords = 1024
