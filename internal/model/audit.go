package model

import (
	"time"
)

// AuditLog is one audited HTTP request.
type AuditLog struct {
	ID        string `json:"id"`      // request id (UUID)
	Service   string `json:"service"` // attest, trade, store or sink
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	RequestBody   string `json:"request_body"` // redacted
	RequestHeader string `json:"request_header"`

	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Business context added by handlers, e.g. is_anomaly or triggered_rule.
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
