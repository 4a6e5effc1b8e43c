package pbgatt

import "time"

// RetryPolicy bounds how long a failing notification is retried. The wait between attempts starts at Backoff and doubles
// up to MaxBackoff.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy gives up after roughly one second of back-to-back
// busy replies.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 32,
	Backoff:     time.Millisecond,
	MaxBackoff:  50 * time.Millisecond,
}

// BearerOption is an interface which the bearer should implement to allow using configuration options
type BearerOption interface {
	SetMTU(mtu uint16) error
	SetRetryPolicy(p RetryPolicy) error
	SetSendQueueSize(n int) error
	SetLogger(l Logger) error
	SetErrorHandler(handler func(error)) error
	SetTrace(t EventTrace) error
}

// An Option is a configuration function, which configures the bearer.
type Option func(BearerOption) error

// OptMTU sets the fixed ATT_MTU used for exchange MTU replies, characteristic
// maximum lengths and the outbound size limit.
func OptMTU(mtu uint16) Option {
	return func(opt BearerOption) error {
		return opt.SetMTU(mtu)
	}
}

// OptRetryPolicy overrides DefaultRetryPolicy.
func OptRetryPolicy(p RetryPolicy) Option {
	return func(opt BearerOption) error {
		return opt.SetRetryPolicy(p)
	}
}

// OptSendQueueSize sets how many asynchronous sends may be pending.
func OptSendQueueSize(n int) Option {
	return func(opt BearerOption) error {
		return opt.SetSendQueueSize(n)
	}
}

// OptLogger sets the logger; GetLogger() is used otherwise.
func OptLogger(l Logger) Option {
	return func(opt BearerOption) error {
		return opt.SetLogger(l)
	}
}

// OptErrorHandler sets error handler
func OptErrorHandler(handler func(error)) Option {
	return func(opt BearerOption) error {
		return opt.SetErrorHandler(handler)
	}
}

// OptTrace records every stack event handed to the bearer.
func OptTrace(t EventTrace) Option {
	return func(opt BearerOption) error {
		return opt.SetTrace(t)
	}
}
