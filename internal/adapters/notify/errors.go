package notify

import "errors"

// Sentinel errors for notification delivery.
var (
	ErrNoEndpoint    = errors.New("notify: no endpoint configured")
	ErrNoRecipients  = errors.New("notify: no recipients configured")
	ErrRejected      = errors.New("notify: message rejected")
	ErrUnavailable   = errors.New("notify: endpoint unavailable")
	ErrEmptyResponse = errors.New("notify: response carried no message id")
)
