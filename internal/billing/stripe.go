// Package billing provides Stripe billing integration for plan subscriptions.
package billing

import (
	"fmt"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// MetadataUserID is the metadata key carrying the subscriber's user ID on
// subscriptions created through checkout.
const MetadataUserID = "user_id"

// Interval is a billing period.
type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// Service defines the interface for billing operations.
type Service interface {
	// CreateCustomer creates a new Stripe customer for the given email.
	CreateCustomer(email, name string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(params CheckoutParams) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(customerID, returnURL string) (string, error)

	// GetSubscription fetches the current state of a subscription. Webhook
	// deliveries can arrive out of order, so plan changes act on this rather
	// than on the event payload.
	GetSubscription(subscriptionID string) (*stripe.Subscription, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// PriceFor returns the configured price ID for a paid plan and interval.
	PriceFor(plan domain.PlanTier, interval Interval) (string, bool)

	// PlanForPriceID returns the plan a Stripe price ID grants.
	PlanForPriceID(priceID string) (domain.PlanTier, bool)
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	UserID     uuid.UUID
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	ProMonthlyPriceID      string
	ProYearlyPriceID       string
	BusinessMonthlyPriceID string
	BusinessYearlyPriceID  string
}

type priceKey struct {
	plan     domain.PlanTier
	interval Interval
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	priceToPlan   map[string]domain.PlanTier
	planToPrice   map[priceKey]string
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
// The prices configure which Stripe price IDs map to which plans.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey
	return newStripeService(webhookSecret, prices)
}

func newStripeService(webhookSecret string, prices PriceConfig) *stripeService {
	s := &stripeService{
		webhookSecret: webhookSecret,
		priceToPlan:   make(map[string]domain.PlanTier),
		planToPrice:   make(map[priceKey]string),
	}
	s.addPrice(prices.ProMonthlyPriceID, domain.PlanPro, IntervalMonthly)
	s.addPrice(prices.ProYearlyPriceID, domain.PlanPro, IntervalYearly)
	s.addPrice(prices.BusinessMonthlyPriceID, domain.PlanBusiness, IntervalMonthly)
	s.addPrice(prices.BusinessYearlyPriceID, domain.PlanBusiness, IntervalYearly)
	return s
}

func (s *stripeService) addPrice(priceID string, plan domain.PlanTier, interval Interval) {
	if priceID == "" {
		return
	}
	s.priceToPlan[priceID] = plan
	s.planToPrice[priceKey{plan, interval}] = priceID
}

func (s *stripeService) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(p CheckoutParams) (string, error) {
	sess, err := checkoutsession.New(checkoutSessionParams(p))
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

// checkoutSessionParams tags both the session and the resulting
// subscription with the user ID so webhooks can find the usage record.
func checkoutSessionParams(p CheckoutParams) *stripe.CheckoutSessionParams {
	userID := p.UserID.String()
	return &stripe.CheckoutSessionParams{
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(userID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: userID},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
}

func (s *stripeService) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return sub, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	// The webhook endpoint's API version is set in the Stripe dashboard and
	// may lag the library's; only the fields read here need to parse.
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) PriceFor(plan domain.PlanTier, interval Interval) (string, bool) {
	id, ok := s.planToPrice[priceKey{plan, interval}]
	return id, ok
}

func (s *stripeService) PlanForPriceID(priceID string) (domain.PlanTier, bool) {
	plan, ok := s.priceToPlan[priceID]
	return plan, ok
}

// SubscriptionPlan returns the plan granted by the first recognised price
// on a subscription.
func SubscriptionPlan(svc Service, sub *stripe.Subscription) (domain.PlanTier, bool) {
	if sub == nil || sub.Items == nil {
		return "", false
	}
	for _, item := range sub.Items.Data {
		if item == nil || item.Price == nil {
			continue
		}
		if plan, ok := svc.PlanForPriceID(item.Price.ID); ok {
			return plan, true
		}
	}
	return "", false
}
