package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookPayload_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		shape PayloadShape
		want  TransactionRecord
	}{
		{
			name:  "nested with invoice",
			body:  `{"transaction":{"id":123,"status":"Confirmed","invoice":{"referenceId":"ref_1","paymentRequestId":55}}}`,
			shape: ShapeNested,
			want:  TransactionRecord{ID: "123", ReferenceID: "ref_1", GatewayID: "55", Status: "confirmed"},
		},
		{
			name:  "nested top level reference wins",
			body:  `{"transaction":{"transactionId":"tx-9","state":"waiting","referenceId":"ref_top","invoice":{"referenceId":"ref_inv"}}}`,
			shape: ShapeNested,
			want:  TransactionRecord{ID: "tx-9", ReferenceID: "ref_top", Status: "waiting"},
		},
		{
			name:  "inline",
			body:  `{"id":77,"status":"cancelled","reference_id":"ref_456","gatewayId":"gw_1"}`,
			shape: ShapeInline,
			want:  TransactionRecord{ID: "77", ReferenceID: "ref_456", GatewayID: "gw_1", Status: "cancelled"},
		},
		{
			name:  "inline plain reference",
			body:  `{"status":"paid","reference":"ref_9"}`,
			shape: ShapeInline,
			want:  TransactionRecord{ReferenceID: "ref_9", Status: "paid"},
		},
		{
			name:  "inline id without status",
			body:  `{"id":42,"referenceId":"ref_b"}`,
			shape: ShapeInline,
			want:  TransactionRecord{ID: "42", ReferenceID: "ref_b"},
		},
		{
			name:  "status without identifiers",
			body:  `{"status":"ok"}`,
			shape: ShapeUnknown,
		},
		{
			name:  "subscription event",
			body:  `{"subscription":{"id":1,"status":"active"}}`,
			shape: ShapeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseWebhookPayload([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, p.Shape)
			assert.Equal(t, tt.shape != ShapeUnknown, p.HasTransaction())
			if tt.shape != ShapeUnknown {
				assert.Equal(t, tt.want, p.Transaction)
			}
		})
	}
}

func TestParseWebhookPayload_EventFields(t *testing.T) {
	p, err := ParseWebhookPayload([]byte(`{"event_id":9001,"type":"transaction.updated","transaction":{"id":1,"status":"paid"}}`))
	require.NoError(t, err)
	assert.Equal(t, "9001", p.EventID)
	assert.True(t, p.EventIDNumeric)
	assert.Equal(t, "transaction.updated", p.EventType)

	p, err = ParseWebhookPayload([]byte(`{"eventId":"evt_abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_abc", p.EventID)
	assert.False(t, p.EventIDNumeric)
}

func TestParseWebhookPayload_Malformed(t *testing.T) {
	for _, body := range []string{``, `{`, `[1,2]`, `null`, `"text"`} {
		_, err := ParseWebhookPayload([]byte(body))
		assert.True(t, errors.Is(err, ErrInvalidPayload), "body %q", body)
	}
}

func TestParseWebhookPayload_LargeIDsKeepPrecision(t *testing.T) {
	p, err := ParseWebhookPayload([]byte(`{"transaction":{"id":9007199254740993,"status":"paid","referenceId":"r"}}`))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", p.Transaction.ID)
}
