package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/TeacherTime/app/models"
)

func TestCreateCheckout_Personal(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "olga@example.ch")

	res, err := env.svc.CreateCheckout(context.Background(), user, CheckoutRequest{PlanID: PlanPersonalYear, UserAgent: "TeacherTime-iOS/3.1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ReferenceID, "tt_"))
	assert.Equal(t, "https://teachertime.payrexx.com/pay?tid=1", res.RedirectURL)
	assert.Equal(t, int64(4900), res.AmountMinor)
	assert.Equal(t, "CHF", res.Currency)
	assert.Equal(t, testNow.Add(2*time.Hour), res.ExpiresAt)

	require.Len(t, env.provider.gateways, 1)
	gw := env.provider.gateways[0]
	assert.Equal(t, res.ReferenceID, gw.ReferenceID)
	assert.Equal(t, int64(4900), gw.AmountMinor)
	assert.Equal(t, "https://app.teachertime.ch/billing/checkout/success?ref="+res.ReferenceID, gw.SuccessRedirectURL)

	s := env.session(t, res.ReferenceID)
	assert.Equal(t, models.CheckoutStatusPending, s.Status)
	assert.Equal(t, "1", s.GatewayID)
	assert.Equal(t, 1, s.Quantity)
	assert.Nil(t, s.OrganizationID)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(s.Metadata, &meta))
	assert.Equal(t, PlanPersonalYear, meta["plan"])
	assert.Equal(t, "TeacherTime-iOS/3.1", meta["user_agent"])
}

func TestCreateCheckout_ConflictWithActiveLicense(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "paul@example.ch")

	_, err := env.svc.StartTrial(context.Background(), user)
	require.NoError(t, err)
	_, err = env.svc.CreateCheckout(context.Background(), user, CheckoutRequest{PlanID: PlanPersonalMonth})
	require.NoError(t, err, "a running trial does not block a purchase")

	until := env.now.Add(24 * time.Hour)
	uid := user.ID
	require.NoError(t, env.db.Create(&models.Entitlement{
		UserID: &uid, Kind: models.EntitlementKindPersonal, Source: models.EntitlementSourcePayrexx,
		Status: models.EntitlementStatusActive, Seats: 1, ValidFrom: env.now.Add(-time.Hour), ValidUntil: &until,
	}).Error)

	_, err = env.svc.CreateCheckout(context.Background(), user, CheckoutRequest{PlanID: PlanPersonalYear})
	assert.ErrorIs(t, err, ErrActiveEntitlementExists)
	assert.Len(t, env.provider.gateways, 1)
}

func TestCreateCheckout_Validation(t *testing.T) {
	env := newTestEnv(t)
	orgID := uint(5)
	member := env.createUser(t, "quinn@example.ch")
	member.OrganizationID = &orgID
	member.OrgRole = models.ORG_ROLE_MEMBER

	tests := []struct {
		name string
		req  CheckoutRequest
		want error
	}{
		{"missing plan", CheckoutRequest{}, ErrInvalidRequest},
		{"unknown plan", CheckoutRequest{PlanID: "gold"}, ErrUnknownPlan},
		{"personal quantity", CheckoutRequest{PlanID: PlanPersonalYear, Quantity: 3}, ErrInvalidQuantity},
		{"too many seats", CheckoutRequest{PlanID: PlanOrgSeatYear, Quantity: 501}, ErrInvalidRequest},
		{"org without id", CheckoutRequest{PlanID: PlanOrgSeatYear, Quantity: 10}, ErrOrganizationRequired},
		{"org member", CheckoutRequest{PlanID: PlanOrgSeatYear, Quantity: 10, OrganizationID: &orgID}, ErrForbiddenOrganization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateCheckout(context.Background(), member, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, env.provider.gateways)
}

func TestCreateCheckout_Organization(t *testing.T) {
	env := newTestEnv(t)
	orgID := uint(5)
	admin := env.createUser(t, "rita@example.ch")
	admin.OrganizationID = &orgID
	admin.OrgRole = models.ORG_ROLE_ADMIN

	res, err := env.svc.CreateCheckout(context.Background(), admin, CheckoutRequest{PlanID: PlanOrgSeatYear, Quantity: 20, OrganizationID: &orgID})
	require.NoError(t, err)
	assert.Equal(t, int64(20*3900), res.AmountMinor)

	s := env.session(t, res.ReferenceID)
	require.NotNil(t, s.OrganizationID)
	assert.Equal(t, orgID, *s.OrganizationID)
	assert.Equal(t, 20, s.Quantity)
}

func TestCreateCheckout_GatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	env.provider.gatewayErr = errors.New("payrexx 502")
	user := env.createUser(t, "sven@example.ch")

	_, err := env.svc.CreateCheckout(context.Background(), user, CheckoutRequest{PlanID: PlanPersonalYear})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	var count int64
	require.NoError(t, env.db.Model(&models.CheckoutSession{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutStatus(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "tina@example.ch")
	stranger := env.createUser(t, "ueli@example.ch")
	env.createSession(t, owner.ID, "ref_poll", PlanPersonalYear)

	st, err := env.svc.CheckoutStatus(context.Background(), owner, "ref_poll")
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusPending, st.Status)
	assert.False(t, st.HasActiveEntitlement)
	assert.Empty(t, env.cache.data, "pending sessions are not cached")

	_, err = env.svc.CheckoutStatus(context.Background(), stranger, "ref_poll")
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
	_, err = env.svc.CheckoutStatus(context.Background(), owner, "ref_missing")
	assert.ErrorIs(t, err, ErrCheckoutNotFound)

	env.provider.transactions["950"] = TransactionRecord{ID: "950", ReferenceID: "ref_poll", Status: "confirmed"}
	require.Equal(t, http.StatusOK, env.deliver(transactionBody(950, "ref_poll", "confirmed")).Status)

	st, err = env.svc.CheckoutStatus(context.Background(), owner, "ref_poll")
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusCompleted, st.Status)
	assert.True(t, st.HasActiveEntitlement)
	assert.Contains(t, env.cache.data, statusCacheKey("ref_poll"))

	// Served from cache, still owner checked.
	require.NoError(t, env.db.Model(&models.CheckoutSession{}).Where("reference_id = ?", "ref_poll").Update("status", "failed").Error)
	st, err = env.svc.CheckoutStatus(context.Background(), owner, "ref_poll")
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusCompleted, st.Status)
	_, err = env.svc.CheckoutStatus(context.Background(), stranger, "ref_poll")
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
}

func TestReconcileInvalidatesStatusCache(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "vera@example.ch")
	env.createSession(t, owner.ID, "ref_cache", PlanPersonalYear)
	env.cache.data[statusCacheKey("ref_cache")] = `{"reference_id":"ref_cache","status":"pending","user_id":1}`

	env.provider.transactions["951"] = TransactionRecord{ID: "951", ReferenceID: "ref_cache", Status: "declined"}
	require.Equal(t, http.StatusOK, env.deliver(transactionBody(951, "ref_cache", "declined")).Status)
	assert.NotContains(t, env.cache.data, statusCacheKey("ref_cache"))
}

func TestWaitForCheckout(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "walter@example.ch")
	env.createSession(t, owner.ID, "ref_wait_poll", PlanPersonalYear)

	st, err := env.svc.WaitForCheckout(context.Background(), owner, "ref_wait_poll", PollOptions{Attempts: 3, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusPending, st.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err = env.svc.WaitForCheckout(ctx, owner, "ref_wait_poll", PollOptions{Attempts: 100, Interval: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusPending, st.Status)

	env.provider.transactions["952"] = TransactionRecord{ID: "952", ReferenceID: "ref_wait_poll", Status: "paid"}
	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(20 * time.Millisecond)
		env.deliver(transactionBody(952, "ref_wait_poll", "paid"))
	}()
	st, err = env.svc.WaitForCheckout(context.Background(), owner, "ref_wait_poll", PollOptions{Attempts: 200, Interval: 5 * time.Millisecond})
	<-done
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusCompleted, st.Status)
	assert.True(t, st.HasActiveEntitlement)
}

func TestStartTrialOnce(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "xenia@example.ch")

	ent, err := env.svc.StartTrial(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, models.EntitlementKindTrial, ent.Kind)
	assert.Equal(t, models.EntitlementSourceSystem, ent.Source)
	assert.Equal(t, testNow.Add(30*24*time.Hour), *ent.ValidUntil)

	_, err = env.svc.StartTrial(context.Background(), user)
	assert.ErrorIs(t, err, ErrTrialAlreadyUsed)

	list, active, err := env.svc.ListEntitlements(context.Background(), user)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.True(t, active)

	// An expired trial still counts as used.
	env.now = env.now.Add(60 * 24 * time.Hour)
	_, active, err = env.svc.ListEntitlements(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, active)
	_, err = env.svc.StartTrial(context.Background(), user)
	assert.ErrorIs(t, err, ErrTrialAlreadyUsed)
}

func TestListEntitlementsIncludesOrganization(t *testing.T) {
	env := newTestEnv(t)
	orgID := uint(9)
	teacher := env.createUser(t, "yves@example.ch")
	teacher.OrganizationID = &orgID

	until := env.now.Add(100 * 24 * time.Hour)
	require.NoError(t, env.db.Create(&models.Entitlement{
		OrganizationID: &orgID, Kind: models.EntitlementKindOrgSeat, Source: models.EntitlementSourcePayrexx,
		Status: models.EntitlementStatusActive, Seats: 30, ValidFrom: env.now.Add(-time.Hour), ValidUntil: &until,
	}).Error)

	list, active, err := env.svc.ListEntitlements(context.Background(), teacher)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.True(t, active)
}

func TestRevokeEntitlements(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "zoe@example.ch")
	_, err := env.svc.StartTrial(context.Background(), user)
	require.NoError(t, err)

	n, err := env.svc.RevokeEntitlements(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list := env.entitlementsOf(t, user.ID)
	require.Len(t, list, 1)
	assert.Equal(t, models.EntitlementStatusRevoked, list[0].Status)

	n, err = env.svc.RevokeEntitlements(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLifecycleSweeps(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "adam@example.ch")
	env.createSession(t, user.ID, "ref_abandoned", PlanPersonalYear)
	_, err := env.svc.StartTrial(context.Background(), user)
	require.NoError(t, err)

	n, err := env.svc.ExpireStaleCheckouts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	env.now = env.now.Add(45 * 24 * time.Hour)
	n, err = env.svc.ExpireStaleCheckouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	s := env.session(t, "ref_abandoned")
	assert.Equal(t, models.CheckoutStatusExpired, s.Status)
	assert.Equal(t, "checkout session expired", s.FailureReason)

	n, err = env.svc.ExpireLapsedEntitlements(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.EntitlementStatusExpired, env.entitlementsOf(t, user.ID)[0].Status)

	// Payments for an abandoned session arrive too late to grant anything.
	env.provider.transactions["953"] = TransactionRecord{ID: "953", ReferenceID: "ref_abandoned", Status: "confirmed"}
	resp := env.deliver(transactionBody(953, "ref_abandoned", "confirmed"))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, OutcomeAlreadyFinal, resp.Outcome.Kind)
}
