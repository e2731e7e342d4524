package errz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFaultError(t *testing.T) {
	f := New(FaultPatch, "return slot mismatch")
	require.Equal(t, "patch fault: return slot mismatch", f.Error())

	f = f.WithFrame(0x10, 0x20, 0x30)
	require.Equal(t, "patch fault: return slot mismatch (sp=0x10 fp=0x20 pc=0x30)", f.Error())
}

func TestFaultCause(t *testing.T) {
	cause := errors.New("boom")
	f := Newf(FaultWalk, "walk %d failed", 7).WithCause(cause)
	require.Equal(t, "walk fault: walk 7 failed", f.Error())
	require.True(t, errors.Is(f, cause))
}

func TestFaultKindStrings(t *testing.T) {
	require.Equal(t, "bounds fault", FaultBounds.String())
	require.Equal(t, "anchor fault", FaultAnchor.String())
	require.Equal(t, "result kind fault", FaultResultKind.String())
	require.Equal(t, "frame fault", FaultFrame.String())
}

func TestFatalfPanics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		f, ok := r.(*Fault)
		require.True(t, ok)
		require.Equal(t, FaultAnchor, f.Kind)
	}()
	Fatalf(FaultAnchor, "captured twice")
}
