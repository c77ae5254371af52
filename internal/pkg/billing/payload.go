package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PayloadShape classifies where the transaction lives in a webhook body.
type PayloadShape int

const (
	ShapeUnknown PayloadShape = iota
	// ShapeNested: {"transaction": {...}}
	ShapeNested
	// ShapeInline: transaction fields at the top level.
	ShapeInline
)

func (s PayloadShape) String() string {
	switch s {
	case ShapeNested:
		return "nested"
	case ShapeInline:
		return "inline"
	default:
		return "unknown"
	}
}

// WebhookPayload is a parsed webhook body. Transaction is only meaningful
// when Shape is not ShapeUnknown.
type WebhookPayload struct {
	Shape          PayloadShape
	Fields         map[string]any
	EventID        string
	EventIDNumeric bool
	EventType      string
	Transaction    TransactionRecord
}

var (
	eventIDFields     = []string{"event_id", "eventId", "webhook_id", "webhookId"}
	eventTypeFields   = []string{"type", "event", "event_type", "eventType"}
	txIDFields        = []string{"id", "transactionId", "transaction_id"}
	txReferenceFields = []string{"referenceId", "reference_id"}
	txGatewayFields   = []string{"paymentRequestId", "payment_request_id", "gatewayId", "gateway_id"}
	txStatusFields    = []string{"status", "state"}
)

// ParseWebhookPayload decodes a webhook body and classifies its shape. Bodies
// that are not a JSON object fail with ErrInvalidPayload.
func ParseWebhookPayload(raw []byte) (*WebhookPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrInvalidPayload)
	}

	p := &WebhookPayload{Fields: doc}
	if v, numeric, ok := firstValue(doc, eventIDFields...); ok {
		p.EventID = v
		p.EventIDNumeric = numeric
	}
	p.EventType = firstString(doc, eventTypeFields...)

	if nested, ok := doc["transaction"].(map[string]any); ok {
		p.Shape = ShapeNested
		p.Transaction = extractTransaction(nested)
		return p, nil
	}
	if looksLikeTransaction(doc) {
		p.Shape = ShapeInline
		p.Transaction = extractTransaction(doc)
	}
	return p, nil
}

// HasTransaction reports whether a transaction was recognized in the body.
func (p *WebhookPayload) HasTransaction() bool {
	return p != nil && p.Shape != ShapeUnknown
}

// looksLikeTransaction requires a transaction id or reference at the top
// level. The status may be missing; the live lookup supplies it.
func looksLikeTransaction(m map[string]any) bool {
	t := extractTransaction(m)
	return t.ID != "" || t.ReferenceID != ""
}

func extractTransaction(m map[string]any) TransactionRecord {
	invoice, _ := m["invoice"].(map[string]any)

	t := TransactionRecord{
		ID:     firstString(m, txIDFields...),
		Status: strings.ToLower(firstString(m, txStatusFields...)),
	}

	t.ReferenceID = firstString(m, txReferenceFields...)
	if t.ReferenceID == "" && invoice != nil {
		t.ReferenceID = firstString(invoice, txReferenceFields...)
	}
	if t.ReferenceID == "" {
		t.ReferenceID = firstString(m, "reference")
	}

	if invoice != nil {
		t.GatewayID = firstString(invoice, txGatewayFields...)
	}
	if t.GatewayID == "" {
		t.GatewayID = firstString(m, txGatewayFields...)
	}
	return t
}

func firstString(m map[string]any, keys ...string) string {
	v, _, _ := firstValue(m, keys...)
	return v
}

// firstValue returns the first non-empty scalar among keys, stringified, and
// whether it was numeric.
func firstValue(m map[string]any, keys ...string) (string, bool, bool) {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, false, true
			}
		case json.Number:
			return v.String(), true, true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true, true
		}
	}
	return "", false, false
}
