package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// EventKeyKind records which derivation rule produced an event key.
type EventKeyKind string

const (
	EventKeyExplicit    EventKeyKind = "explicit"
	EventKeyTransaction EventKeyKind = "transaction"
	EventKeyContentHash EventKeyKind = "content_hash"
)

// DeriveEventKey builds the idempotency key of a webhook: the provider event
// id when present, else transaction id plus event type, else a hash of the
// canonical payload so identical redeliveries still collapse onto one row.
func DeriveEventKey(p *WebhookPayload, raw []byte) (string, EventKeyKind) {
	if p.EventID != "" {
		if p.EventIDNumeric {
			return "payrexx:evt:" + p.EventID, EventKeyExplicit
		}
		return p.EventID, EventKeyExplicit
	}

	if p.HasTransaction() && p.Transaction.ID != "" {
		return "payrexx:tx:" + p.Transaction.ID + ":" + EventTypeOf(p), EventKeyTransaction
	}

	body, ok := canonicalPayload(p.Fields)
	if !ok {
		body = raw
	}
	sum := sha256.Sum256(body)
	return "payrexx:hash:" + hex.EncodeToString(sum[:]), EventKeyContentHash
}

// EventTypeOf returns the explicit event type or one derived from the
// transaction status.
func EventTypeOf(p *WebhookPayload) string {
	if t := strings.TrimSpace(p.EventType); t != "" {
		return strings.ToLower(t)
	}
	if p.HasTransaction() {
		if p.Transaction.Status == "" {
			return "transaction"
		}
		return "transaction." + p.Transaction.Status
	}
	return "unknown"
}
