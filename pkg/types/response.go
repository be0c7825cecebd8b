package types

// Meta carries optional envelope metadata such as pagination cursors.
type Meta struct {
	Cursor      string `json:"cursor,omitempty"`
	UnreadCount *int64 `json:"unread_count,omitempty"`
}

type SuccessEnvelope struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Meta    *Meta `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Success bool     `json:"success"`
	Error   APIError `json:"error"`
}

// WebhookAck is the body returned to payment providers on accepted deliveries.
type WebhookAck struct {
	Received bool `json:"received"`
}
