package domain

import "errors"

var (
	// ErrMissingParams means the connection request lacked room or token.
	ErrMissingParams = errors.New("room and token required")
	// ErrUnauthenticated covers every token failure; the cause is not exposed.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrStorageUnavailable wraps history store failures, timeouts included.
	ErrStorageUnavailable = errors.New("history storage unavailable")
	// ErrDeliveryFailed is returned when a member's send buffer is full or closed.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrSessionClosed is returned for work submitted after a session began closing.
	ErrSessionClosed = errors.New("session closed")
)

// WebSocket close codes.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
	CloseUnauthorized    = 4401
)

// Close reasons sent with the codes above.
const (
	ReasonMissingParams = "room and token required"
	ReasonUnauthorized  = "unauthorized"
	ReasonInternal      = "internal error"
	ReasonShutdown      = "server shutting down"
)

// CloseFor maps a gateway error to the close code and reason sent to the client.
func CloseFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingParams):
		return ClosePolicyViolation, ReasonMissingParams
	case errors.Is(err, ErrUnauthenticated):
		return CloseUnauthorized, ReasonUnauthorized
	default:
		return CloseInternalError, ReasonInternal
	}
}
