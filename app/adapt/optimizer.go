package adapt

import (
	"context"

	"github.com/postwire/postwire/app/connector"
)

// Optimizer produces a platform-tailored draft of the post body. The engine
// treats the result as a suggestion only and applies every hard constraint
// itself afterwards, so a misbehaving optimizer can never produce output
// that violates platform capabilities.
type Optimizer interface {
	Optimize(ctx context.Context, post connector.CanonicalPost, platform string, maxLength int) (string, error)
}

// PassthroughOptimizer returns the post body unchanged. It is the default
// when no external optimizer is configured and keeps adaptation fully
// deterministic.
type PassthroughOptimizer struct{}

func (PassthroughOptimizer) Optimize(ctx context.Context, post connector.CanonicalPost, platform string, maxLength int) (string, error) {
	return post.Body, nil
}
