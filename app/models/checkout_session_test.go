package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionCheckout(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		{CheckoutStatusPending, CheckoutStatusCompleted, true},
		{CheckoutStatusPending, CheckoutStatusCancelled, true},
		{CheckoutStatusPending, CheckoutStatusFailed, true},
		{CheckoutStatusPending, CheckoutStatusExpired, true},
		{CheckoutStatusPending, CheckoutStatusPending, false},
		{CheckoutStatusCompleted, CheckoutStatusFailed, false},
		{CheckoutStatusCancelled, CheckoutStatusCompleted, false},
		{CheckoutStatusExpired, CheckoutStatusPending, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransitionCheckout(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestUserCanPurchaseForOrganization(t *testing.T) {
	orgID := uint(7)
	other := uint(8)

	admin := &User{OrganizationID: &orgID, OrgRole: ORG_ROLE_ADMIN}
	member := &User{OrganizationID: &orgID, OrgRole: ORG_ROLE_MEMBER}
	outsider := &User{OrganizationID: &other, OrgRole: ORG_ROLE_ADMIN}

	assert.True(t, admin.CanPurchaseForOrganization(orgID))
	assert.False(t, member.CanPurchaseForOrganization(orgID))
	assert.False(t, outsider.CanPurchaseForOrganization(orgID))
	assert.False(t, (&User{}).CanPurchaseForOrganization(orgID))
}
