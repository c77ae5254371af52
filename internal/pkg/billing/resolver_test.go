package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, body string) *WebhookPayload {
	t.Helper()
	p, err := ParseWebhookPayload([]byte(body))
	require.NoError(t, err)
	return p
}

func TestResolver_PrefersLiveRecord(t *testing.T) {
	f := &fakeProvider{transactions: map[string]TransactionRecord{
		"10": {ID: "10", ReferenceID: "ref_a", Status: "cancelled"},
	}}
	r := NewTransactionResolver(f, time.Second)

	// The body claims success; the provider says otherwise.
	tx, err := r.Resolve(context.Background(), mustParse(t, transactionBody(10, "ref_a", "confirmed")), true)
	require.NoError(t, err)
	assert.Equal(t, SourceLiveLookup, tx.Source)
	assert.Equal(t, "cancelled", tx.Status)
	assert.Equal(t, "5010", tx.GatewayID, "gateway id filled from the signed payload")
}

func TestResolver_UnsignedPayloadDoesNotFillGaps(t *testing.T) {
	f := &fakeProvider{transactions: map[string]TransactionRecord{
		"11": {ID: "11", Status: "confirmed"},
	}}
	r := NewTransactionResolver(f, time.Second)

	tx, err := r.Resolve(context.Background(), mustParse(t, transactionBody(11, "ref_victim", "confirmed")), false)
	require.NoError(t, err)
	assert.Empty(t, tx.ReferenceID)
}

func TestResolver_FallbackRequiresSignature(t *testing.T) {
	f := &fakeProvider{lookupErr: errors.New("connection refused")}
	r := NewTransactionResolver(f, time.Second)
	p := mustParse(t, transactionBody(12, "ref_123", "confirmed"))

	tx, err := r.Resolve(context.Background(), p, true)
	require.NoError(t, err)
	assert.Equal(t, SourcePayload, tx.Source)
	assert.Equal(t, "ref_123", tx.ReferenceID)
	assert.Equal(t, "confirmed", tx.Status)

	_, err = r.Resolve(context.Background(), p, false)
	assert.ErrorIs(t, err, ErrTransactionUnavailable)
}

func TestResolver_NoTransactionID(t *testing.T) {
	r := NewTransactionResolver(&fakeProvider{}, time.Second)
	p := mustParse(t, `{"status":"paid","referenceId":"ref_1"}`)

	tx, err := r.Resolve(context.Background(), p, true)
	require.NoError(t, err)
	assert.Equal(t, SourcePayload, tx.Source)

	_, err = r.Resolve(context.Background(), p, false)
	assert.ErrorIs(t, err, ErrTransactionUnavailable)
}

func TestResolver_UnknownShape(t *testing.T) {
	r := NewTransactionResolver(&fakeProvider{}, time.Second)
	_, err := r.Resolve(context.Background(), mustParse(t, `{"hello":"world"}`), true)
	assert.ErrorIs(t, err, ErrUnknownPayloadShape)
}

type slowLookup struct{}

func (slowLookup) GetTransaction(ctx context.Context, _ string) (*TransactionRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolver_LookupIsBounded(t *testing.T) {
	r := NewTransactionResolver(slowLookup{}, 30*time.Millisecond)
	start := time.Now()
	tx, err := r.Resolve(context.Background(), mustParse(t, transactionBody(13, "ref_slow", "paid")), true)
	require.NoError(t, err)
	assert.Equal(t, SourcePayload, tx.Source)
	assert.Less(t, time.Since(start), time.Second)
}
