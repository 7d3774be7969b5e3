package domain

// FailedSend records a send that ended with a terminal error.
type FailedSend struct {
	RequestID  string `json:"request_id"`
	Op         string `json:"op"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error_msg"`
	FailedAt   int64  `json:"failed_at"` // unix seconds
}
