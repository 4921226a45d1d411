package prompt

import "errors"

// Sentinel errors shared by every script provider. Providers wrap backend
// failures in these so callers can classify a failed page without knowing
// which backend produced it.
var (
	ErrProviderUnavailable = errors.New("script provider unreachable")
	ErrInferenceTimeout    = errors.New("script inference timed out")
	ErrInvalidResponse     = errors.New("provider response is not a usable script")
)
