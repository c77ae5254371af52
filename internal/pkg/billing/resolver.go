package billing

import (
	"context"
	"fmt"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TeacherTime/internal/pkg/metrics"
)

// TransactionLookup fetches authoritative transaction state from the provider.
type TransactionLookup interface {
	GetTransaction(ctx context.Context, id string) (*TransactionRecord, error)
}

// TransactionResolver prefers the live Payrexx record over the webhook body
// and only trusts the body when its signature was verified.
type TransactionResolver struct {
	lookup  TransactionLookup
	timeout time.Duration
}

func NewTransactionResolver(lookup TransactionLookup, timeout time.Duration) *TransactionResolver {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &TransactionResolver{lookup: lookup, timeout: timeout}
}

// Resolve returns the transaction to reconcile. It fails with
// ErrTransactionUnavailable when neither source is usable.
func (r *TransactionResolver) Resolve(ctx context.Context, p *WebhookPayload, signatureVerified bool) (*ResolvedTransaction, error) {
	if !p.HasTransaction() {
		return nil, ErrUnknownPayloadShape
	}
	claimed := p.Transaction

	var lookupErr error
	if claimed.ID != "" && r.lookup != nil {
		live, err := r.lookupLive(ctx, claimed.ID)
		if err == nil {
			metrics.ObservePayrexxLookup("ok")
			if signatureVerified {
				if live.ReferenceID == "" {
					live.ReferenceID = claimed.ReferenceID
				}
				if live.GatewayID == "" {
					live.GatewayID = claimed.GatewayID
				}
			}
			if live.Status != claimed.Status && claimed.Status != "" {
				fiberlog.Warnf("[Billing] Transaction %s: payload status %q differs from live status %q", claimed.ID, claimed.Status, live.Status)
			}
			return &ResolvedTransaction{TransactionRecord: *live, Source: SourceLiveLookup}, nil
		}
		metrics.ObservePayrexxLookup("error")
		lookupErr = err
		fiberlog.Warnf("[Billing] Live lookup of transaction %s failed: %v", claimed.ID, err)
	}

	if signatureVerified && claimed.ReferenceID != "" && claimed.Status != "" {
		return &ResolvedTransaction{TransactionRecord: claimed, Source: SourcePayload}, nil
	}

	if lookupErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionUnavailable, lookupErr)
	}
	if !signatureVerified {
		return nil, fmt.Errorf("%w: no transaction id to verify an unsigned payload", ErrTransactionUnavailable)
	}
	return nil, fmt.Errorf("%w: payload lacks reference id or status", ErrTransactionUnavailable)
}

func (r *TransactionResolver) lookupLive(ctx context.Context, id string) (*TransactionRecord, error) {
	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.lookup.GetTransaction(lctx, id)
}
