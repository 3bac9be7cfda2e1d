package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ragline/internal/metrics"
	"ragline/internal/rag"
)

// Policy bounds one logical upstream call. Attempts counts the first try.
type Policy struct {
	Timeout         time.Duration
	Attempts        int
	InitialInterval time.Duration
}

// NoRetry keeps the timeout but never repeats the call.
func (p Policy) NoRetry() Policy {
	p.Attempts = 1
	return p
}

// Retryable reports whether err is worth another attempt: timeouts, network
// failures, 429 and 5xx. Client errors and local misconfiguration are final.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, rag.ErrMalformedResponse) {
		return false
	}
	switch rag.KindOf(err) {
	case rag.KindConfiguration, rag.KindValidation, rag.KindNotFound:
		return false
	}
	var se *rag.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// Do runs op under a per-attempt timeout, retrying transient failures with
// exponential backoff until the policy or ctx is exhausted.
func Do(ctx context.Context, dependency, operation string, p Policy, op func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	b.MaxElapsedTime = 0

	try := 0
	return backoff.Retry(func() error {
		if try > 0 {
			metrics.UpstreamRetries.WithLabelValues(dependency, operation).Inc()
		}
		try++

		callCtx, cancel := withTimeout(ctx, p.Timeout)
		defer cancel()

		start := time.Now()
		err := op(callCtx)
		metrics.ObserveUpstream(dependency, operation, start, err)
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
