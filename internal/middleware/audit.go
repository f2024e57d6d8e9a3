package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/GoPolymarket/attestgate/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextAuditLog = "audit_log"
	HeaderRequestID = "X-Request-ID"
)

// AuditSink receives one finished entry per request.
type AuditSink interface {
	Log(entry *model.AuditLog)
}

// bodyLogWriter captures the response body.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func AuditMiddleware(service string, sink AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.New().String()
		}
		c.Header(HeaderRequestID, reqID)

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		}

		// Handlers add business fields through AddAuditContext.
		entry := &model.AuditLog{
			ID:            reqID,
			Service:       service,
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			IP:            c.ClientIP(),
			UserAgent:     c.Request.UserAgent(),
			RequestHeader: c.GetHeader("Content-Type"),
			CreatedAt:     start.UTC(),
			Context:       make(map[string]interface{}),
		}
		c.Set(ContextAuditLog, entry)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		entry.RequestBody = redactAuditBody(c.Request.URL.Path, reqBody)
		entry.StatusCode = c.Writer.Status()
		entry.ResponseBody = redactAuditBody(c.Request.URL.Path, blw.body.Bytes())
		entry.LatencyMs = time.Since(start).Milliseconds()

		if sink != nil {
			sink.Log(entry)
		}
	}
}

// AddAuditContext attaches a business field to the current request's entry.
func AddAuditContext(c *gin.Context, key string, value interface{}) {
	if val, exists := c.Get(ContextAuditLog); exists {
		if entry, ok := val.(*model.AuditLog); ok {
			entry.Context[key] = value
		}
	}
}

func redactAuditBody(path string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if !isSensitivePath(path) {
		return string(body)
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[redacted]"
	}
	return string(redacted)
}

// Admin and attestation bodies may carry keys or signatures.
func isSensitivePath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/admin"):
		return true
	case strings.HasPrefix(path, "/attest"):
		return true
	default:
		return false
	}
}

func redactJSON(body []byte) ([]byte, bool) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "api_key",
		"private_key",
		"signature",
		"sig",
		"admin_key":
		return true
	default:
		return false
	}
}
