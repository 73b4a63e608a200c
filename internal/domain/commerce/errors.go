package commerce

import (
	"context"
	"errors"
)

// Domain errors for the commerce bounded context
var (
	// ErrTransient marks failures that are expected to clear on retry
	// (database unavailable, gateway timeout, gateway 5xx)
	ErrTransient = errors.New("commerce: transient failure")

	ErrOrderNotFound          = errors.New("commerce: order not found")
	ErrInvalidOrderPayload    = errors.New("commerce: invalid order payload")
	ErrInvalidProductPayload  = errors.New("commerce: invalid product payload")
	ErrMappingNotFound        = errors.New("commerce: product mapping not found")
	ErrMappingNotPushed       = errors.New("commerce: product mapping has no platform product")
	ErrInvalidLocalType       = errors.New("commerce: invalid local type")
	ErrAssetNotFound          = errors.New("commerce: digital asset not found")
	ErrInvalidAssetType       = errors.New("commerce: invalid digital asset type")
	ErrInvalidFileURL         = errors.New("commerce: file url must be bucket/path")
	ErrMissingDownloadToken   = errors.New("commerce: download token is required")
	ErrInvalidExpiry          = errors.New("commerce: expiry must not be negative")
	ErrInvalidSyncLogEntry    = errors.New("commerce: invalid sync log entry")
	ErrInvalidInventoryUpdate = errors.New("commerce: invalid inventory update")
)

// retryable is implemented by errors that know whether retrying can help,
// such as gateway API errors.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err is worth retrying.
// Errors carrying their own classification win over wrapped sentinels.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
