package geocoding

import (
	"context"
)

// Provider resolves the locality of an Indian postal pincode into a human-readable address.
// It is used as the last address fallback when no grocery provider reported one.
type Provider interface {
	ResolveAddress(ctx context.Context, pincode string) (string, error)
}
