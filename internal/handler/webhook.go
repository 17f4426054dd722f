package handler

// This file implements the Stripe webhook handler. Subscription events are
// the only path by which a paid plan is granted or revoked.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aiwriterpros/aiwriter/internal/billing"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// maxWebhookBody is the largest webhook payload read.
const maxWebhookBody = 64 << 10

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing     billing.Service
	quota       service.QuotaService
	userService service.UserService
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, quota service.QuotaService, userService service.UserService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:     billingService,
		quota:       quota,
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC, with no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// A processing failure answers 500 so Stripe redelivers the event. Events
// that can never succeed (unparseable, unknown user) are acknowledged.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	// Stripe does not wait on the outcome, so processing outlives the request.
	ctx := context.WithoutCancel(r.Context())

	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		h.handlePaymentFailed(event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	if err != nil {
		h.logger.Error("webhook processing failed", "type", event.Type, "id", event.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return nil
	}

	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil || session.Customer == nil {
		h.logger.Warn("checkout session missing user or customer", "session_id", session.ID)
		return nil
	}

	// The plan itself is granted by the subscription event.
	return h.userService.UpdateStripeCustomer(ctx, userID, session.Customer.ID)
}

func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err)
		return nil
	}

	userID, ok := h.subscriptionUser(&sub)
	if !ok {
		return nil
	}

	// Deliveries are unordered: an "active" update can land after the
	// deletion. Decide from the subscription as Stripe holds it now.
	current, err := h.billing.GetSubscription(sub.ID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", sub.ID, err)
	}
	if current.Status != sub.Status {
		h.logger.Info("subscription event is stale",
			"subscription_id", sub.ID, "user_id", userID, "event_status", sub.Status, "current_status", current.Status)
	}
	sub = *current

	var plan domain.PlanTier
	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		plan, ok = billing.SubscriptionPlan(h.billing, &sub)
		if !ok {
			h.logger.Warn("subscription has no recognised price", "subscription_id", sub.ID, "user_id", userID)
			return nil
		}
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatusIncompleteExpired, stripe.SubscriptionStatusPaused:
		plan = domain.PlanFree
	default:
		// past_due and incomplete keep the current plan while Stripe retries.
		h.logger.Info("subscription status leaves plan unchanged",
			"subscription_id", sub.ID, "user_id", userID, "status", sub.Status)
		return nil
	}

	return h.changePlan(ctx, userID, plan, sub.ID, string(sub.Status))
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return nil
	}

	userID, ok := h.subscriptionUser(&sub)
	if !ok {
		return nil
	}
	return h.changePlan(ctx, userID, domain.PlanFree, sub.ID, "deleted")
}

func (h *WebhookHandler) handlePaymentFailed(event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment failed event", "error", err)
		return
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	h.logger.Warn("payment failed", "invoice_id", invoice.ID, "customer_id", customerID)
}

// subscriptionUser reads the user ID stamped on the subscription at checkout.
func (h *WebhookHandler) subscriptionUser(sub *stripe.Subscription) (uuid.UUID, bool) {
	userID, err := uuid.Parse(sub.Metadata[billing.MetadataUserID])
	if err != nil {
		h.logger.Warn("subscription missing user_id metadata", "subscription_id", sub.ID)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *WebhookHandler) changePlan(ctx context.Context, userID uuid.UUID, plan domain.PlanTier, subscriptionID, reason string) error {
	if _, err := h.quota.ChangePlan(ctx, userID, plan); err != nil {
		return fmt.Errorf("change plan for subscription %s: %w", subscriptionID, err)
	}
	h.logger.Info("subscription event processed",
		"user_id", userID, "subscription_id", subscriptionID, "plan", plan, "reason", reason)
	return nil
}
