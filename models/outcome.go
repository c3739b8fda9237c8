package models

// OutcomeKind classifies a delivery outcome.
type OutcomeKind string

const (
	OutcomeDelivered         OutcomeKind = "delivered"
	OutcomeFallbackDelivered OutcomeKind = "fallback_delivered"
	OutcomeDeliveryFailed    OutcomeKind = "delivery_failed"
)

// Delivery is what the chat client reports for one send.
type Delivery struct {
	Delivered bool
	// Raw is the provider response (message timestamp or error text).
	Raw string
}

// Outcome records one delivery attempt made while dispatching an event.
type Outcome struct {
	Kind        OutcomeKind `json:"kind"`
	Destination string      `json:"destination"`
	// Recipients holds the emails the outcome concerns: the single
	// recipient for a direct send, the unresolved set for the fallback.
	Recipients []string `json:"recipients,omitempty"`
	Message    Message  `json:"message"`
	Detail     string   `json:"detail,omitempty"`
}
