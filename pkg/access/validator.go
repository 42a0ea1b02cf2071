package access

import (
	"context"
	"fmt"

	"github.com/pagehost/pagehost/pkg/provider"
)

// MetadataSource resolves stored object metadata. Any storage provider's
// Head method satisfies it.
type MetadataSource interface {
	Head(ctx context.Context, key string) (*provider.ObjectMeta, error)
}

// Validator authorizes reads against policies stored in the bucket. It holds
// no state of its own; every decision is derived from object metadata at
// request time, so any number of validator instances agree by construction.
type Validator struct {
	source MetadataSource
}

// NewValidator returns a validator backed by the given metadata source.
func NewValidator(source MetadataSource) *Validator {
	return &Validator{source: source}
}

// Authorize resolves the policy for objectKey and decides the read. A key
// with no object behind it yields DecisionDenyNotFound. Storage failures
// return an error alongside a deny, never an allow.
func (v *Validator) Authorize(ctx context.Context, objectKey, presentedToken string) (Decision, error) {
	meta, err := v.source.Head(ctx, objectKey)
	if err != nil {
		if provider.IsNotFound(err) {
			return DecisionDenyNotFound, nil
		}
		return DecisionDenyForbidden, fmt.Errorf("resolve policy for %s: %w", objectKey, err)
	}
	return PolicyFromMetadata(meta.Metadata).Authorize(presentedToken), nil
}
