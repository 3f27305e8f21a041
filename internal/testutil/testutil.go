// Package testutil provides small helpers shared by this module's tests,
// matching the ambient codebase's own must/ensure test helper style.
package testutil

func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func Ensure(err error) {
	if err != nil {
		panic(err)
	}
}
