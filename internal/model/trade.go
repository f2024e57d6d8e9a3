package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transaction is one historical trade row. Rows are immutable once inserted.
type Transaction struct {
	TransactionID string    `json:"transaction_id" db:"transaction_id" gorm:"column:transaction_id;primaryKey"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp" gorm:"column:timestamp;index"`
	Token         string    `json:"token" db:"token" gorm:"column:token;index"`
	Amount        float64   `json:"amount" db:"amount" gorm:"column:amount"`
	Protocol      *string   `json:"protocol,omitempty" db:"protocol" gorm:"column:protocol"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// TradeWindowEntry is a transaction returned by the closest-trade lookup
// together with its distance to the reference price and its time rank.
type TradeWindowEntry struct {
	Transaction
	AmountDiff float64 `json:"amount_diff" db:"amount_diff"`
	RowNum     int64   `json:"row_num" db:"row_num"`
}

// SwapRequest is the body of POST /store_swap. Every key is required;
// pointers distinguish "missing" from zero values. protocol may be null.
type SwapRequest struct {
	TransactionID *string        `json:"transaction_id"`
	Timestamp     *Timestamp     `json:"timestamp"`
	Token         *string        `json:"token"`
	Amount        *float64       `json:"amount"`
	Protocol      OptionalString `json:"protocol"`
}

// OptionalString tells an absent key apart from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if strings.TrimSpace(string(data)) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// MissingField returns the first absent field in column order, or "".
func (r SwapRequest) MissingField() string {
	switch {
	case r.TransactionID == nil:
		return "transaction_id"
	case r.Timestamp == nil:
		return "timestamp"
	case r.Token == nil:
		return "token"
	case r.Amount == nil:
		return "amount"
	case !r.Protocol.Set:
		return "protocol"
	default:
		return ""
	}
}

// Transaction converts a complete request. Call MissingField first. A null
// protocol is stored as NULL.
func (r SwapRequest) Transaction() Transaction {
	tx := Transaction{
		TransactionID: *r.TransactionID,
		Timestamp:     r.Timestamp.Time,
		Token:         *r.Token,
		Amount:        *r.Amount,
	}
	if r.Protocol.Value != nil {
		protocol := *r.Protocol.Value
		tx.Protocol = &protocol
	}
	return tx
}

// Timestamp accepts RFC3339 strings, "2006-01-02 15:04:05" strings and unix
// seconds (number or numeric string).
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return fmt.Errorf("timestamp cannot be null")
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseTime(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	parsed, err := ParseTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats found in exported trade data.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	if unix, err := strconv.ParseFloat(raw, 64); err == nil {
		sec := int64(unix)
		nsec := int64((unix - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format: %q", raw)
}
