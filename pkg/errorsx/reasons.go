package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonAlreadyInitialized ReasonCode = "already_initialized"
	ReasonUninitialized      ReasonCode = "uninitialized"
	ReasonInvalidArgument    ReasonCode = "invalid_argument"
	ReasonSiteFailure        ReasonCode = "site_failure"
	ReasonServiceError       ReasonCode = "service_error"
	ReasonUnexpectedTransition ReasonCode = "unexpected_transition"
	ReasonInvalidTransition    ReasonCode = "invalid_transition"

	ReasonTransportSend    ReasonCode = "transport_send"
	ReasonTransportConnect ReasonCode = "transport_connect"
)
