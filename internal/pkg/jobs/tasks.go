package jobs

import (
	"context"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Lifecycle is the billing surface the sweeps drive.
type Lifecycle interface {
	ExpireStaleCheckouts(ctx context.Context) (int64, error)
	ExpireLapsedEntitlements(ctx context.Context) (int64, error)
	RetryFailedWebhooks(ctx context.Context, maxAttempts, limit int) (int, error)
}

// Archive exports processed webhook events.
type Archive interface {
	Run(ctx context.Context, limit int) (int, error)
}

const (
	TaskCheckoutExpiry    = "checkout-expiry"
	TaskEntitlementExpiry = "entitlement-expiry"
	TaskWebhookRetry      = "webhook-retry"
	TaskWebhookArchive    = "webhook-archive"
)

// BillingTasks builds the lifecycle tasks. archive may be nil when the S3
// archive is disabled.
func BillingTasks(cfg Config, lc Lifecycle, archive Archive) []Task {
	tasks := []Task{
		{
			Name:     TaskCheckoutExpiry,
			Interval: cfg.SweepInterval,
			Run: func(ctx context.Context) error {
				n, err := lc.ExpireStaleCheckouts(ctx)
				if n > 0 {
					fiberlog.Infof("[Jobs] Expired %d stale checkout sessions", n)
				}
				return err
			},
		},
		{
			Name:     TaskEntitlementExpiry,
			Interval: cfg.SweepInterval,
			Run: func(ctx context.Context) error {
				n, err := lc.ExpireLapsedEntitlements(ctx)
				if n > 0 {
					fiberlog.Infof("[Jobs] Expired %d lapsed entitlements", n)
				}
				return err
			},
		},
		{
			Name:     TaskWebhookRetry,
			Interval: cfg.WebhookRetryInterval,
			Run: func(ctx context.Context) error {
				n, err := lc.RetryFailedWebhooks(ctx, cfg.WebhookMaxAttempts, cfg.WebhookRetryBatchSize)
				if n > 0 {
					fiberlog.Infof("[Jobs] Retried %d failed webhook events", n)
				}
				return err
			},
		},
	}

	if archive != nil {
		tasks = append(tasks, Task{
			Name:     TaskWebhookArchive,
			Interval: cfg.ArchiveInterval,
			Run: func(ctx context.Context) error {
				_, err := archive.Run(ctx, cfg.ArchiveBatchSize)
				return err
			},
		})
	}
	return tasks
}
