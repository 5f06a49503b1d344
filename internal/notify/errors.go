package notify

import "errors"

// ErrPermanent marks delivery failures that retrying cannot fix: missing
// addresses, unconfigured channels, template errors, and client-side HTTP rejections.
// Permanent failures end the retry loop and do not count against the channel breaker.
var ErrPermanent = errors.New("permanent delivery failure")

// permanentError keeps the cause's message while matching ErrPermanent.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

// markPermanent wraps err so IsPermanent reports true; nil stays nil.
func markPermanent(err error) error {
	if err == nil || IsPermanent(err) {
		return err
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err, or any error joined into it, is permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
