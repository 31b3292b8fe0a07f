package webhook

import (
	"testing"
	"time"

	"github.com/slotbook/billing/internal/app/service/lifecycle"
	"github.com/slotbook/billing/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRazorpayEvent(t *testing.T) {
	t.Run("charged event carries payment and period", func(t *testing.T) {
		body := []byte(`{
			"event": "subscription.charged",
			"created_at": 1756600000,
			"payload": {
				"subscription": {"entity": {"id": "sub_001", "plan_id": "plan_rz_pro", "status": "active", "current_start": 1756600000, "current_end": 1759192000}},
				"payment": {"entity": {"id": "pay_001", "amount": 49900, "currency": "INR", "status": "captured", "method": "card"}}
			}
		}`)
		ev, eventType, ok, err := parseRazorpayEvent(body)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "subscription.charged", eventType)
		assert.Equal(t, lifecycle.KindCharged, ev.Kind)
		assert.Equal(t, types.PaymentProviderRazorpay, ev.Provider)
		assert.Equal(t, "sub_001", ev.SubscriptionID)
		require.NotNil(t, ev.Payment)
		assert.Equal(t, "pay_001", ev.Payment.PaymentID)
		assert.Equal(t, int64(49900), ev.Payment.Amount)
		require.NotNil(t, ev.PeriodEnd)
		assert.Equal(t, time.Unix(1759192000, 0), *ev.PeriodEnd)
	})

	t.Run("halted maps to suspension", func(t *testing.T) {
		body := []byte(`{
			"event": "subscription.halted",
			"payload": {"subscription": {"entity": {"id": "sub_002", "status": "halted"}}}
		}`)
		ev, _, ok, err := parseRazorpayEvent(body)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, lifecycle.KindSuspended, ev.Kind)
	})

	t.Run("unrelated event acknowledged without handling", func(t *testing.T) {
		body := []byte(`{"event": "invoice.paid", "payload": {}}`)
		_, eventType, ok, err := parseRazorpayEvent(body)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "invoice.paid", eventType)
	})

	t.Run("charged without payment entity fails", func(t *testing.T) {
		body := []byte(`{
			"event": "subscription.charged",
			"payload": {"subscription": {"entity": {"id": "sub_003"}}}
		}`)
		_, _, _, err := parseRazorpayEvent(body)
		assert.Error(t, err)
	})

	t.Run("garbage payload fails", func(t *testing.T) {
		_, _, _, err := parseRazorpayEvent([]byte(`not json`))
		assert.Error(t, err)
	})
}

func TestParsePayPalEvent(t *testing.T) {
	t.Run("subscription activated", func(t *testing.T) {
		body := []byte(`{
			"id": "WH-1",
			"event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
			"resource": {"id": "I-ABC", "plan_id": "P-123", "status": "ACTIVE", "billing_info": {"next_billing_time": "2026-09-30T00:00:00Z"}}
		}`)
		ev, eventType, ok, err := parsePayPalEvent(body)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "BILLING.SUBSCRIPTION.ACTIVATED", eventType)
		assert.Equal(t, lifecycle.KindActivated, ev.Kind)
		assert.Equal(t, "I-ABC", ev.SubscriptionID)
		require.NotNil(t, ev.PeriodEnd)
	})

	t.Run("sale completed maps to charge on the agreement", func(t *testing.T) {
		body := []byte(`{
			"event_type": "PAYMENT.SALE.COMPLETED",
			"resource": {"id": "SALE-1", "state": "completed", "billing_agreement_id": "I-ABC", "amount": {"total": "9.99", "currency": "USD"}}
		}`)
		ev, _, ok, err := parsePayPalEvent(body)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, lifecycle.KindCharged, ev.Kind)
		assert.Equal(t, "I-ABC", ev.SubscriptionID)
		require.NotNil(t, ev.Payment)
		assert.Equal(t, int64(999), ev.Payment.Amount)
		assert.Equal(t, "USD", ev.Payment.Currency)
	})

	t.Run("sale without agreement acknowledged without handling", func(t *testing.T) {
		body := []byte(`{
			"event_type": "PAYMENT.SALE.COMPLETED",
			"resource": {"id": "SALE-2", "amount": {"total": "5.00", "currency": "USD"}}
		}`)
		_, _, ok, err := parsePayPalEvent(body)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown event type acknowledged without handling", func(t *testing.T) {
		body := []byte(`{"event_type": "CUSTOMER.DISPUTE.CREATED", "resource": {}}`)
		_, eventType, ok, err := parsePayPalEvent(body)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "CUSTOMER.DISPUTE.CREATED", eventType)
	})
}

func TestParseDecimalAmount(t *testing.T) {
	cases := map[string]int64{
		"10.00": 1000,
		"9.99":  999,
		"0.50":  50,
		"120":   12000,
	}
	for in, want := range cases {
		got, err := parseDecimalAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseDecimalAmount("")
	assert.Error(t, err)
	_, err = parseDecimalAmount("abc")
	assert.Error(t, err)
}
