package clientreport

// DiscardReason represents why an event was not delivered.
type DiscardReason string

const (
	// ReasonQueueOverflow indicates the transport queue was full.
	ReasonQueueOverflow DiscardReason = "queue_overflow"

	// ReasonSampleRate indicates the event was dropped due to sampling.
	ReasonSampleRate DiscardReason = "sample_rate"

	// ReasonBeforeSend indicates the EventFilter returned no event.
	ReasonBeforeSend DiscardReason = "before_send"

	// ReasonEventFilterError indicates the EventFilter failed or panicked.
	ReasonEventFilterError DiscardReason = "event_filter_error"

	// ReasonIgnored indicates the error matched IgnoreErrors.
	ReasonIgnored DiscardReason = "ignored"

	// ReasonNetworkError indicates every attempt failed at the connection level.
	ReasonNetworkError DiscardReason = "network_error"

	// ReasonSendError indicates the collector answered with a non-retryable
	// status or retries were exhausted on 5xx/429 responses.
	ReasonSendError DiscardReason = "send_error"

	// ReasonAuthError indicates the collector rejected the token or project.
	ReasonAuthError DiscardReason = "auth_error"

	// ReasonEncodeError indicates the event could not be serialized or
	// truncated below the payload limit.
	ReasonEncodeError DiscardReason = "encode_error"

	// ReasonInternalError indicates the SDK failed while building the event.
	ReasonInternalError DiscardReason = "internal_sdk_error"

	// ReasonShutdown indicates the event was still queued when the
	// transport stopped.
	ReasonShutdown DiscardReason = "shutdown"
)
