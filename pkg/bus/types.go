package bus

// ForwardRequest is the normalized payload delivered to the webhook.
// TraceID is internal correlation only and never serialized.
type ForwardRequest struct {
	From    string `json:"from"`
	Body    string `json:"body"`
	TraceID string `json:"-"`
}
