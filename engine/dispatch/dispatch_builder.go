package dispatch

// DispatcherBuilderOption is a functional option for configuring a Dispatcher via NewDispatcher.
type DispatcherBuilderOption func(*dispatcherImpl)

// WithStrictVersion makes CONFIGURE with a different major version a protocol violation
// instead of a logged warning.
//
// Parameters:
//   - strict: true to reject mismatched clients
//
// Returns:
//   - DispatcherBuilderOption: a function that applies the option to a dispatcher
func WithStrictVersion(strict bool) DispatcherBuilderOption {
	return func(d *dispatcherImpl) {
		d.strictVersion = strict
	}
}

// WithRebindRepeats overrides how many drains each deferred rebind runs for. The default, zero,
// uses the backend's frames in flight.
//
// Parameters:
//   - n: the number of drains
//
// Returns:
//   - DispatcherBuilderOption: a function that applies the option to a dispatcher
func WithRebindRepeats(n int) DispatcherBuilderOption {
	return func(d *dispatcherImpl) {
		d.repeats = n
	}
}
