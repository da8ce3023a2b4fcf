package uploader

import "time"

// WithBaseRetryPeriod sets the initial retry period for exponential backoff retries.
func WithBaseRetryPeriod(d time.Duration) Options {
	return func(o *options) {
		o.baseRetryPeriod = d
	}
}

// WithMaxRetryPeriod sets the retry period ceiling for exponential backoff retries.
func WithMaxRetryPeriod(d time.Duration) Options {
	return func(o *options) {
		o.maxRetryPeriod = d
	}
}

// WithMaxAttempts sets the maximum number of attempts for exponential backoff retries.
func WithMaxAttempts(n uint32) Options {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithResponseTimeout sets the response timeout when waiting for the node.
func WithResponseTimeout(d time.Duration) Options {
	return func(o *options) {
		o.responseTimeout = d
	}
}
