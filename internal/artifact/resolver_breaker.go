package artifact

import (
	"context"

	"github.com/sheenhq/workspace-gateway/internal/infrastructure/resilience"
)

// BreakerResolver wraps an ObjectResolver in a circuit breaker so a dead
// registry fails fast instead of holding every artifact request for the
// full retry budget. An unknown build (nil, nil) is a healthy response.
type BreakerResolver struct {
	inner   ObjectResolver
	breaker *resilience.Breaker
}

// NewBreakerResolver wraps resolver with the given breaker settings.
func NewBreakerResolver(resolver ObjectResolver, settings resilience.Settings) *BreakerResolver {
	return &BreakerResolver{
		inner:   resolver,
		breaker: resilience.New(settings),
	}
}

// Resolve implements ObjectResolver.
func (r *BreakerResolver) Resolve(ctx context.Context, buildID string) (*ObjectReference, error) {
	var ref *ObjectReference
	err := r.breaker.Do(func() error {
		var innerErr error
		ref, innerErr = r.inner.Resolve(ctx, buildID)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}
