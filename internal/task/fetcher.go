package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/phrazzld/atlas-api/internal/discovery"
	"github.com/phrazzld/atlas-api/internal/domain"
)

// DefaultFetchTimeout bounds a single data-source call.
const DefaultFetchTimeout = 30 * time.Second

// FetcherConfig holds configuration for a HierarchyFetcher.
type FetcherConfig struct {
	// Timeout bounds each individual fetch attempt. Zero falls back to
	// DefaultFetchTimeout.
	Timeout time.Duration

	// RequestsPerSecond paces calls to the data source across all tasks.
	// Zero disables pacing.
	RequestsPerSecond float64

	// Burst is the pacing burst size. Zero falls back to 1 when pacing is
	// enabled.
	Burst int
}

// HierarchyFetcher composes the retry policy, the shared permit pool, and
// client-side pacing around a discovery.Source to produce resilient fetch
// operations for each hierarchy level. A permit is held only for the
// duration of one attempt, never across backoff waits.
type HierarchyFetcher struct {
	source  discovery.Source
	permits *PermitPool
	retry   *RetryPolicy
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// NewHierarchyFetcher creates a fetcher over the given source. All of
// source, permits and retry are required.
func NewHierarchyFetcher(
	source discovery.Source,
	permits *PermitPool,
	retry *RetryPolicy,
	config FetcherConfig,
	logger *slog.Logger,
) (*HierarchyFetcher, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if permits == nil {
		return nil, ErrNilPermits
	}
	if retry == nil {
		return nil, ErrNilRetry
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &HierarchyFetcher{
		source:  source,
		permits: permits,
		retry:   retry,
		limiter: limiter,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// FetchProvinces fetches the top-level node set.
func (f *HierarchyFetcher) FetchProvinces(ctx context.Context) ([]discovery.Node, error) {
	return f.fetch(ctx, "provinces", func(ctx context.Context) ([]discovery.Node, error) {
		return f.source.FetchProvinces(ctx)
	})
}

// FetchChildren fetches the direct children of parentPath at the given
// child level.
func (f *HierarchyFetcher) FetchChildren(
	ctx context.Context,
	parentPath string,
	level domain.Level,
) ([]discovery.Node, error) {
	what := fmt.Sprintf("%s of %s", level, parentPath)
	return f.fetch(ctx, what, func(ctx context.Context) ([]discovery.Node, error) {
		return f.source.FetchChildren(ctx, parentPath, level)
	})
}

// fetch runs one source call under the retry policy. Each attempt waits for
// the pacer, takes a permit, and carries its own timeout.
func (f *HierarchyFetcher) fetch(
	ctx context.Context,
	what string,
	call func(ctx context.Context) ([]discovery.Node, error),
) ([]discovery.Node, error) {
	var nodes []discovery.Node

	err := f.retry.Execute(ctx, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := f.permits.Acquire(ctx); err != nil {
			return err
		}
		defer f.permits.Release()

		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		result, err := call(attemptCtx)
		if err != nil {
			f.logger.Debug("fetch attempt failed",
				"what", what,
				"error", err)
			return err
		}

		nodes = result
		return nil
	}, ClassifyFetchError)
	if err != nil {
		return nil, err
	}

	return nodes, nil
}

// ClassifyFetchError maps data-source failures to retry classes: explicit
// transients and timeouts are retriable, cancellation and everything else is
// not.
func ClassifyFetchError(err error) ErrorClass {
	if errors.Is(err, context.Canceled) {
		return ErrorClassPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTransient
	}
	if discovery.IsTransient(err) {
		return ErrorClassTransient
	}
	return ErrorClassPermanent
}
