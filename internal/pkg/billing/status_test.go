package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/TeacherTime/app/models"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		in   string
		want StatusClass
	}{
		{"confirmed", StatusSuccess},
		{"Authorized", StatusSuccess},
		{" paid ", StatusSuccess},
		{"failed", StatusFailure},
		{"declined", StatusFailure},
		{"cancelled", StatusFailure},
		{"canceled", StatusFailure},
		{"expired", StatusFailure},
		{"waiting", StatusUnrecognized},
		{"uncaptured", StatusUnrecognized},
		{"", StatusUnrecognized},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyStatus(tt.in), tt.in)
	}
}

func TestFailureCheckoutStatus(t *testing.T) {
	assert.Equal(t, models.CheckoutStatusCancelled, FailureCheckoutStatus("canceled"))
	assert.Equal(t, models.CheckoutStatusCancelled, FailureCheckoutStatus("cancelled"))
	assert.Equal(t, models.CheckoutStatusExpired, FailureCheckoutStatus("expired"))
	assert.Equal(t, models.CheckoutStatusFailed, FailureCheckoutStatus("declined"))
	assert.Equal(t, models.CheckoutStatusFailed, FailureCheckoutStatus("error"))
}
