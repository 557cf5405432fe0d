// Package apperrors provides the error type shared by the backend packages. Errors form
// a tree: a package declares one base error and derives its sentinels from it, so callers
// can match either the specific failure or the whole family with errors.Is.
package apperrors

// Error is an error that remembers the error it was derived from, any errors attached
// to it, and the HTTP status code that best describes it.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // derive a sentinel from the current error
	Msg(msg string) Error                  // replace the message, keep the chain
	MsgErr(msg string, err ...error) Error // replace the message and attach causes
	Err(err ...error) Error                // attach causes, keep the message
	SetStatusCode(int) Error
	StatusCode() int
	ErrorAll() string   // message followed by every attached cause
	UnwrapAll() []error // attached causes, oldest first
}
