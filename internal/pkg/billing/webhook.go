package billing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TeacherTime/app/models"
	"github.com/ManuelReschke/TeacherTime/internal/pkg/metrics"
)

// ProcessWebhook runs one Payrexx delivery through verification, the event
// ledger, transaction resolution and reconciliation. It never returns an
// error: every failure is mapped to the status code the provider should see.
func (s *Service) ProcessWebhook(ctx context.Context, req WebhookRequest) WebhookResponse {
	start := time.Now()
	resp := s.processWebhook(ctx, req)
	metrics.ObserveWebhook(webhookMetricLabel(resp), time.Since(start))
	return resp
}

func (s *Service) processWebhook(ctx context.Context, req WebhookRequest) WebhookResponse {
	payload, err := ParseWebhookPayload(req.Body)
	if err != nil {
		fiberlog.Warnf("[Billing] Rejecting malformed webhook: %v", err)
		return WebhookResponse{Status: http.StatusBadRequest, Body: "invalid payload"}
	}

	sig := VerifyWebhookSignature(req.Body, req.Header, payload.Fields, s.cfg.WebhookSecret)
	if !sig.Verified {
		if sig.Provided > 0 || !s.cfg.AllowUnsigned {
			fiberlog.Warnf("[Billing] Rejecting webhook with invalid signature (tokens=%d)", sig.Provided)
			return WebhookResponse{Status: http.StatusUnauthorized, Body: "invalid signature"}
		}
		fiberlog.Warnf("[Billing] Accepting unsigned webhook; relying on live transaction lookup")
	}

	key, kind := DeriveEventKey(payload, req.Body)
	if kind == EventKeyContentHash {
		fiberlog.Warnf("[Billing] Webhook carries neither event id nor transaction id; using content hash key %s", key)
	}

	created, event, err := s.repo.CreateWebhookEventIfNotExists(ctx, &models.WebhookEvent{
		Provider:       models.WebhookProviderPayrexx,
		EventKey:       key,
		EventType:      EventTypeOf(payload),
		PayloadJSON:    string(req.Body),
		SignatureValid: sig.Verified,
	})
	if err != nil {
		fiberlog.Errorf("[Billing] Persisting webhook %s failed: %v", key, err)
		return WebhookResponse{Status: http.StatusInternalServerError, Body: "could not record event"}
	}
	if event.Processed {
		return WebhookResponse{Status: http.StatusOK, Body: "already processed", EventID: event.ID}
	}
	if !created {
		fiberlog.Infof("[Billing] Retrying unprocessed webhook %d (%s)", event.ID, key)
	}

	// Trust follows the body being processed. A signed earlier copy stored
	// under the same key does not vouch for this one.
	outcome, err := s.handleEvent(ctx, event, payload, sig.Verified)
	if err != nil {
		return WebhookResponse{Status: http.StatusInternalServerError, Body: "processing failed", EventID: event.ID}
	}
	return WebhookResponse{Status: http.StatusOK, Body: outcomeBody(outcome), EventID: event.ID, Outcome: &outcome}
}

// handleEvent resolves and reconciles a stored event and records the result on
// its ledger row.
func (s *Service) handleEvent(ctx context.Context, event *models.WebhookEvent, payload *WebhookPayload, verified bool) (Outcome, error) {
	outcome, err := s.resolveAndReconcile(ctx, payload, verified)
	if err != nil {
		fiberlog.Errorf("[Billing] Webhook %d (%s) failed: %v", event.ID, event.EventKey, err)
		if markErr := s.repo.MarkWebhookFailed(ctx, event.ID, err.Error()); markErr != nil {
			fiberlog.Errorf("[Billing] Recording failure of webhook %d failed: %v", event.ID, markErr)
		}
		return Outcome{}, err
	}

	if err := s.repo.MarkWebhookProcessed(ctx, event.ID, outcomeNote(outcome)); err != nil {
		// The reconciliation is committed and idempotent; a redelivery will
		// settle as already final and mark the row then.
		fiberlog.Errorf("[Billing] Marking webhook %d processed failed: %v", event.ID, err)
		return Outcome{}, err
	}

	switch outcome.Kind {
	case OutcomeIgnored:
		fiberlog.Infof("[Billing] Webhook %d ignored: %s", event.ID, outcome.Note)
	default:
		fiberlog.Infof("[Billing] Webhook %d reconciled: reference=%s outcome=%s status=%s",
			event.ID, outcome.ReferenceID, outcome.Kind, outcome.SessionStatus)
	}
	return outcome, nil
}

func (s *Service) resolveAndReconcile(ctx context.Context, payload *WebhookPayload, verified bool) (Outcome, error) {
	tx, err := s.resolver.Resolve(ctx, payload, verified)
	if err != nil {
		return Outcome{}, err
	}
	return s.Reconcile(ctx, *tx)
}

// Reconcile applies a resolved transaction to its checkout session.
func (s *Service) Reconcile(ctx context.Context, tx ResolvedTransaction) (Outcome, error) {
	if tx.ReferenceID == "" {
		return Outcome{Kind: OutcomeIgnored, Note: "transaction carries no reference id"}, nil
	}

	var (
		outcome Outcome
		err     error
	)
	switch ClassifyStatus(tx.Status) {
	case StatusSuccess:
		outcome, err = s.repo.CompleteCheckout(ctx, CompletionInput{
			ReferenceID:   tx.ReferenceID,
			GatewayID:     tx.GatewayID,
			TransactionID: tx.ID,
			Now:           s.now(),
			ResolvePlan: func(session *models.CheckoutSession) (Plan, error) {
				return LookupPlan(session.PlanID)
			},
		})
	case StatusFailure:
		outcome, err = s.repo.FailCheckout(ctx, FailureInput{
			ReferenceID:   tx.ReferenceID,
			Status:        FailureCheckoutStatus(tx.Status),
			Reason:        "payrexx transaction " + normalizeStatus(tx.Status),
			TransactionID: tx.ID,
			Now:           s.now(),
		})
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnrecognizedStatus, tx.Status)
	}
	if err != nil {
		return Outcome{}, err
	}

	if outcome.Kind != OutcomeIgnored {
		s.invalidateStatus(ctx, tx.ReferenceID)
	}
	return outcome, nil
}

// ReplayWebhookEvent processes a stored, unprocessed event again from its
// recorded payload.
func (s *Service) ReplayWebhookEvent(ctx context.Context, id uint) (*models.WebhookEvent, *Outcome, error) {
	event, err := s.repo.GetWebhookEvent(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if event.Processed {
		return event, nil, nil
	}

	payload, err := ParseWebhookPayload([]byte(event.PayloadJSON))
	if err != nil {
		return event, nil, err
	}

	outcome, err := s.handleEvent(ctx, event, payload, event.SignatureValid)
	if reloaded, getErr := s.repo.GetWebhookEvent(ctx, id); getErr == nil {
		event = reloaded
	}
	if err != nil {
		return event, nil, err
	}
	return event, &outcome, nil
}

// RetryFailedWebhooks replays events that failed fewer than maxAttempts times.
// It returns how many of them are now processed.
func (s *Service) RetryFailedWebhooks(ctx context.Context, maxAttempts, limit int) (int, error) {
	events, err := s.repo.ListRetryableWebhookEvents(ctx, maxAttempts, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range events {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, _, err := s.ReplayWebhookEvent(ctx, events[i].ID); err != nil {
			continue
		}
		done++
	}
	return done, nil
}

func outcomeBody(o Outcome) string {
	switch o.Kind {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAlreadyFinal:
		return "already processed"
	default:
		return "OK"
	}
}

func outcomeNote(o Outcome) string {
	if o.Note != "" {
		return string(o.Kind) + ": " + o.Note
	}
	return string(o.Kind)
}

func webhookMetricLabel(resp WebhookResponse) string {
	switch {
	case resp.Outcome != nil:
		return string(resp.Outcome.Kind)
	case resp.Status == http.StatusOK:
		return "duplicate"
	case resp.Status == http.StatusUnauthorized:
		return "unauthorized"
	case resp.Status == http.StatusBadRequest:
		return "malformed"
	default:
		return "error"
	}
}
