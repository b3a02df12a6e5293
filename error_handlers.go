package batchcall

// reportInternalError reports an internal pool error.
//
// Internal errors are non-job-related failures such as
// worker setup issues. If no handler is registered, the
// error is silently ignored.
func (p *Pool[T]) reportInternalError(e error) {
	if p.onInternalError != nil {
		p.onInternalError(e)
	}
}

// reportJobError reports an error returned by a job or
// produced by panic recovery.
func (p *Pool[T]) reportJobError(err error) {
	if p.onJobError != nil {
		p.onJobError(err)
	}
}

// reportItemError reports a failed item. Item failures are also
// recorded in the ResultSet; the hook is for side channels such as alerting.
func (e *Executor[P, R]) reportItemError(id int, err error) {
	if e.opts.OnItemError != nil {
		e.opts.OnItemError(id, err)
	}
}

// reportInternalError reports executor failures that indicate a bug,
// e.g. an item recorded twice.
func (e *Executor[P, R]) reportInternalError(err error) {
	if e.opts.OnInternalError != nil {
		e.opts.OnInternalError(err)
	}
}
