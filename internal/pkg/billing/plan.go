package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/TeacherTime/app/models"
)

const (
	PlanPersonalYear  = "personal_year"
	PlanPersonalMonth = "personal_month"
	PlanOrgSeatYear   = "org_seat_year"
)

const maxQuantity = 500

// Plan is a purchasable license. UnitAmountMinor is per seat for org plans.
type Plan struct {
	ID              string
	Kind            string
	UnitAmountMinor int64
	ValidFor        time.Duration
	Purpose         string
}

var plans = map[string]Plan{
	PlanPersonalYear: {
		ID:              PlanPersonalYear,
		Kind:            models.EntitlementKindPersonal,
		UnitAmountMinor: 4900,
		ValidFor:        365 * 24 * time.Hour,
		Purpose:         "TeacherTime personal license (1 year)",
	},
	PlanPersonalMonth: {
		ID:              PlanPersonalMonth,
		Kind:            models.EntitlementKindPersonal,
		UnitAmountMinor: 590,
		ValidFor:        30 * 24 * time.Hour,
		Purpose:         "TeacherTime personal license (1 month)",
	},
	PlanOrgSeatYear: {
		ID:              PlanOrgSeatYear,
		Kind:            models.EntitlementKindOrgSeat,
		UnitAmountMinor: 3900,
		ValidFor:        365 * 24 * time.Hour,
		Purpose:         "TeacherTime school license (1 year)",
	},
}

func normalizePlan(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}

// LookupPlan returns the catalog entry for id.
func LookupPlan(id string) (Plan, error) {
	p, ok := plans[normalizePlan(id)]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}

// IsOrganizationPlan reports whether the plan is bought for a whole school.
func (p Plan) IsOrganizationPlan() bool {
	return p.Kind == models.EntitlementKindOrgSeat
}

// NormalizeQuantity applies the default of one and the plan's limits.
func (p Plan) NormalizeQuantity(q int) (int, error) {
	if q == 0 {
		q = 1
	}
	if q < 1 || q > maxQuantity {
		return 0, ErrInvalidQuantity
	}
	if !p.IsOrganizationPlan() && q != 1 {
		return 0, ErrInvalidQuantity
	}
	return q, nil
}

// Amount is the total price in minor units for quantity seats.
func (p Plan) Amount(quantity int) int64 {
	return p.UnitAmountMinor * int64(quantity)
}
