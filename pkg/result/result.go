// Package result provides a two-variant outcome type: an operation either
// succeeded with a value or failed with a typed error. Business failures are
// carried as values so callers must handle both cases explicitly.
package result

// Result holds either a success value of type T or a failure of type E.
// The zero Result is a failure with E's zero value; construct with Ok or Err.
type Result[T any, E error] struct {
	value T
	err   E
	ok    bool
}

// Ok returns a successful Result carrying value.
func Ok[T any, E error](value T) Result[T, E] {
	return Result[T, E]{value: value, ok: true}
}

// Err returns a failed Result carrying err.
func Err[T any, E error](err E) Result[T, E] {
	return Result[T, E]{err: err}
}

func (r Result[T, E]) IsOk() bool {
	return r.ok
}

func (r Result[T, E]) IsErr() bool {
	return !r.ok
}

// Value returns the success value, or T's zero value for a failure.
func (r Result[T, E]) Value() T {
	return r.value
}

// Err returns the failure, or E's zero value for a success.
func (r Result[T, E]) Err() E {
	return r.err
}

// Get unpacks the Result for callers that prefer the comma-ok form.
func (r Result[T, E]) Get() (T, E, bool) {
	return r.value, r.err, r.ok
}

// OrElse returns the success value, or fallback for a failure.
func (r Result[T, E]) OrElse(fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}

// Map transforms the success value, passing failures through untouched.
func Map[T, U any, E error](r Result[T, E], fn func(T) U) Result[U, E] {
	if !r.ok {
		return Err[U](r.err)
	}
	return Ok[U, E](fn(r.value))
}

// MapErr transforms the failure, passing successes through untouched.
func MapErr[T any, E, F error](r Result[T, E], fn func(E) F) Result[T, F] {
	if r.ok {
		return Ok[T, F](r.value)
	}
	return Err[T](fn(r.err))
}

// AndThen chains an operation that can itself fail. The first failure
// short-circuits the chain.
func AndThen[T, U any, E error](r Result[T, E], fn func(T) Result[U, E]) Result[U, E] {
	if !r.ok {
		return Err[U](r.err)
	}
	return fn(r.value)
}

// Fold collapses both cases into a single value.
func Fold[T, U any, E error](r Result[T, E], onOk func(T) U, onErr func(E) U) U {
	if r.ok {
		return onOk(r.value)
	}
	return onErr(r.err)
}
