package batchcall

import "errors"

var (
	// ErrMalformedResponse is wrapped by adapters when a response is empty or
	// cannot be decoded into the expected shape.
	ErrMalformedResponse = errors.New("batchcall: malformed response")

	// ErrBatchAborted is returned by RunBatch when AbortOnFatal stopped the batch.
	ErrBatchAborted = errors.New("batchcall: batch aborted on fatal error")

	// ErrNilCaller is an adapter setup error.
	ErrNilCaller = errors.New("batchcall: caller is nil")

	// ErrDuplicateID is returned when two work items share an id.
	ErrDuplicateID = errors.New("batchcall: duplicate work item id")

	// ErrInvalidStrategy is returned for an unknown strategy or a bounded
	// strategy without a positive limit.
	ErrInvalidStrategy = errors.New("batchcall: invalid strategy")
)

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Transient marks err as retryable. Nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Fatal marks err as non-retryable. Nil stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// Classifier maps an adapter error to the kind the retry loop acts on.
// Only KindTransient and KindFatal are meaningful return values.
type Classifier func(err error) ErrorKind

// DefaultClassifier classifies explicit marks first, then malformed
// responses as the given kind, and everything else as transient.
func DefaultClassifier(malformed ErrorKind) Classifier {
	if malformed != KindFatal {
		malformed = KindTransient
	}
	return func(err error) ErrorKind {
		switch {
		case IsFatal(err):
			return KindFatal
		case IsTransient(err):
			return KindTransient
		case errors.Is(err, ErrMalformedResponse):
			return malformed
		default:
			return KindTransient
		}
	}
}
