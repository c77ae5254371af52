package jobs

import (
	"time"

	"github.com/ManuelReschke/TeacherTime/internal/pkg/env"
)

// Config holds the intervals of the background workers.
type Config struct {
	SweepInterval         time.Duration
	WebhookRetryInterval  time.Duration
	ArchiveInterval       time.Duration
	WebhookMaxAttempts    int
	WebhookRetryBatchSize int
	ArchiveBatchSize      int
}

// LoadConfig reads the job settings from the environment.
func LoadConfig() Config {
	return Config{
		SweepInterval:         minutes("JOB_SWEEP_INTERVAL_MINUTES", 5),
		WebhookRetryInterval:  minutes("JOB_WEBHOOK_RETRY_INTERVAL_MINUTES", 2),
		ArchiveInterval:       minutes("JOB_ARCHIVE_INTERVAL_MINUTES", 60),
		WebhookMaxAttempts:    env.GetInt("JOB_WEBHOOK_MAX_ATTEMPTS", 5),
		WebhookRetryBatchSize: 50,
		ArchiveBatchSize:      200,
	}
}

func minutes(key string, def int) time.Duration {
	return time.Duration(env.GetInt(key, def)) * time.Minute
}
