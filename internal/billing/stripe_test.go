package billing

import (
	"testing"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

var testPrices = PriceConfig{
	ProMonthlyPriceID:      "price_pro_m",
	ProYearlyPriceID:       "price_pro_y",
	BusinessMonthlyPriceID: "price_biz_m",
}

func TestPriceMapping(t *testing.T) {
	s := newStripeService("whsec_test", testPrices)

	plan, ok := s.PlanForPriceID("price_pro_y")
	assert.True(t, ok)
	assert.Equal(t, domain.PlanPro, plan)

	plan, ok = s.PlanForPriceID("price_biz_m")
	assert.True(t, ok)
	assert.Equal(t, domain.PlanBusiness, plan)

	_, ok = s.PlanForPriceID("price_unknown")
	assert.False(t, ok)

	id, ok := s.PriceFor(domain.PlanPro, IntervalMonthly)
	assert.True(t, ok)
	assert.Equal(t, "price_pro_m", id)

	// Unset price IDs are not mapped.
	_, ok = s.PriceFor(domain.PlanBusiness, IntervalYearly)
	assert.False(t, ok)
	_, ok = s.PlanForPriceID("")
	assert.False(t, ok)
}

func TestCheckoutSessionParams(t *testing.T) {
	userID := uuid.New()
	p := checkoutSessionParams(CheckoutParams{
		UserID:     userID,
		CustomerID: "cus_1",
		PriceID:    "price_pro_m",
		SuccessURL: "https://app.example.com/ok",
		CancelURL:  "https://app.example.com/cancel",
	})

	assert.Equal(t, userID.String(), *p.ClientReferenceID)
	assert.Equal(t, "cus_1", *p.Customer)
	assert.Equal(t, "subscription", *p.Mode)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, "price_pro_m", *p.LineItems[0].Price)
	assert.Equal(t, userID.String(), p.SubscriptionData.Metadata[MetadataUserID])
}

func TestSubscriptionPlan(t *testing.T) {
	s := newStripeService("whsec_test", testPrices)

	sub := &stripe.Subscription{Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
		{Price: &stripe.Price{ID: "price_other"}},
		{Price: &stripe.Price{ID: "price_biz_m"}},
	}}}
	plan, ok := SubscriptionPlan(s, sub)
	assert.True(t, ok)
	assert.Equal(t, domain.PlanBusiness, plan)

	_, ok = SubscriptionPlan(s, &stripe.Subscription{})
	assert.False(t, ok)
	_, ok = SubscriptionPlan(s, nil)
	assert.False(t, ok)
}

func TestVerifyWebhookSignature(t *testing.T) {
	s := newStripeService("whsec_test", testPrices)
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.updated","api_version":"` + stripe.APIVersion + `","data":{"object":{}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	event, err := s.VerifyWebhookSignature(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, stripe.EventType("customer.subscription.updated"), event.Type)

	_, err = s.VerifyWebhookSignature(payload, "t=1,v1=bad")
	assert.Error(t, err)
}

func TestVerifyWebhookSignature_OlderAPIVersion(t *testing.T) {
	s := newStripeService("whsec_test", testPrices)
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.subscription.deleted","api_version":"2020-08-27","data":{"object":{}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	event, err := s.VerifyWebhookSignature(payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_2", event.ID)
}
