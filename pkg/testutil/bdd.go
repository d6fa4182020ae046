package testutil

import "testing"

// Given wraps a subtest with a "Given ..." label so scenario tests read as
// sentences in verbose output. When and Then are its step counterparts; none
// of them add behavior beyond t.Run.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
