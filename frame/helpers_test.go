package frame_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudcmds/framewalk/errz"
)

// requireFault asserts that fn panics with a Fault of the given kind.
func requireFault(t *testing.T, kind errz.FaultKind, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fault panic")
		fault, ok := r.(*errz.Fault)
		require.True(t, ok, "expected *errz.Fault, got %T", r)
		require.Equal(t, kind, fault.Kind)
	}()
	fn()
}
