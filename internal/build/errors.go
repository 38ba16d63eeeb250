package build

import "fmt"

// BindError is returned when the dev server cannot listen.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("dev server could not listen on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// DeprecatedOptionWarning reports a configuration option that is accepted
// but no longer has any effect.
type DeprecatedOptionWarning struct {
	Option  string
	Message string
}

func (w DeprecatedOptionWarning) Error() string {
	return fmt.Sprintf("deprecated option %q: %s", w.Option, w.Message)
}
