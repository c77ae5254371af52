package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/TeacherTime/internal/pkg/env"
)

const defaultPayrexxAPIBaseURL = "https://api.payrexx.com/v1.0"

// Config holds Payrexx credentials and checkout tunables.
type Config struct {
	Instance      string
	APISecret     string
	APIBaseURL    string
	WebhookSecret string
	// AllowUnsigned accepts deliveries that carry no signature at all and
	// relies on the live transaction lookup instead.
	AllowUnsigned bool

	LookupTimeout time.Duration
	CheckoutTTL   time.Duration
	Currency      string
	PublicDomain  string
	TrialDuration time.Duration
}

// LoadConfig reads billing settings from the environment.
func LoadConfig() *Config {
	apiSecret := strings.TrimSpace(env.GetEnv("PAYREXX_API_SECRET", ""))
	webhookSecret := strings.TrimSpace(env.GetEnv("PAYREXX_WEBHOOK_SECRET", ""))
	if webhookSecret == "" {
		webhookSecret = apiSecret
	}

	return &Config{
		Instance:      strings.TrimSpace(env.GetEnv("PAYREXX_INSTANCE", "")),
		APISecret:     apiSecret,
		APIBaseURL:    strings.TrimRight(strings.TrimSpace(env.GetEnv("PAYREXX_API_BASE_URL", defaultPayrexxAPIBaseURL)), "/"),
		WebhookSecret: webhookSecret,
		AllowUnsigned: env.GetBool("PAYREXX_ALLOW_UNSIGNED"),
		LookupTimeout: time.Duration(env.GetInt("PAYREXX_LOOKUP_TIMEOUT_SECONDS", 8)) * time.Second,
		CheckoutTTL:   time.Duration(env.GetInt("CHECKOUT_SESSION_TTL_MINUTES", 120)) * time.Minute,
		Currency:      strings.ToUpper(strings.TrimSpace(env.GetEnv("CHECKOUT_CURRENCY", "CHF"))),
		PublicDomain:  strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"),
		TrialDuration: time.Duration(env.GetInt("TRIAL_DAYS", 30)) * 24 * time.Hour,
	}
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.APIBaseURL == "" {
		out.APIBaseURL = defaultPayrexxAPIBaseURL
	}
	if out.WebhookSecret == "" {
		out.WebhookSecret = out.APISecret
	}
	if out.LookupTimeout <= 0 {
		out.LookupTimeout = 8 * time.Second
	}
	if out.CheckoutTTL <= 0 {
		out.CheckoutTTL = 2 * time.Hour
	}
	if out.Currency == "" {
		out.Currency = "CHF"
	}
	if out.TrialDuration <= 0 {
		out.TrialDuration = 30 * 24 * time.Hour
	}
	return &out
}
