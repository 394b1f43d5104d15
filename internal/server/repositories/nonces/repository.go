// Package nonces records the upload nonces each device has presented so a
// replayed upload-url request can be rejected.
package nonces

import "context"

type Repository interface {
	// Add records nonce for deviceID. It returns common.ErrNonceReused when
	// the pair was already recorded.
	Add(ctx context.Context, deviceID, nonce string) error
}
