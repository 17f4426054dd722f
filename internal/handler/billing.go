package handler

// This file implements the subscription checkout endpoints backed by Stripe.
//
// Routes handled:
//   - POST /api/billing/checkout -> CreateCheckout
//   - POST /api/billing/portal   -> OpenPortal

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aiwriterpros/aiwriter/internal/auth"
	"github.com/aiwriterpros/aiwriter/internal/billing"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/service"
)

// BillingHandler handles subscription checkout requests.
type BillingHandler struct {
	billing     billing.Service
	userService service.UserService
	baseURL     string
	logger      *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, userService service.UserService, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:     billingService,
		userService: userService,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(h.OpenPortal)))
}

// CheckoutRequest is the body of POST /api/billing/checkout.
type CheckoutRequest struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
}

// RedirectResponse carries a Stripe-hosted URL for the client to open.
type RedirectResponse struct {
	URL string `json:"url"`
}

// CreateCheckout creates a Stripe Checkout session for a paid plan.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.create_checkout"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if h.billing == nil {
		h.logger.Warn("checkout attempted but Stripe is not configured")
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured"))
		return
	}

	var req CheckoutRequest
	if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.Interval == "" {
		req.Interval = string(billing.IntervalMonthly)
	}

	plan, ok := domain.ParsePlanTier(req.Plan)
	if !ok || !plan.IsPaid() {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "plan", "Plan must be pro or business"))
		return
	}
	priceID, ok := h.billing.PriceFor(plan, billing.Interval(req.Interval))
	if !ok {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "interval", "This billing interval is not available"))
		return
	}

	// Ensure user has a Stripe customer
	customerID := user.StripeCustomerID
	if customerID == "" {
		var err error
		customerID, err = h.billing.CreateCustomer(user.Email, user.Name)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to initialize billing"))
			return
		}
		if err := h.userService.UpdateStripeCustomer(r.Context(), user.ID, customerID); err != nil {
			h.logger.Error("failed to save stripe customer ID", "error", err, "user_id", user.ID)
		}
	}

	checkoutURL, err := h.billing.CreateCheckoutSession(billing.CheckoutParams{
		UserID:     user.ID,
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: fmt.Sprintf("%s/billing/success?session_id={CHECKOUT_SESSION_ID}", h.baseURL),
		CancelURL:  fmt.Sprintf("%s/pricing", h.baseURL),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to create checkout session"))
		return
	}

	h.logger.Info("checkout session created", "user_id", user.ID, "plan", plan, "interval", req.Interval)
	writeJSON(w, http.StatusOK, RedirectResponse{URL: checkoutURL})
}

// OpenPortal creates a Stripe Customer Portal session where the user can
// change or cancel their subscription.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	const op = "handler.open_portal"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ENOTIMPL, op, "Billing is not configured"))
		return
	}
	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.ENOTFOUND, op, "No billing account found"))
		return
	}

	portalURL, err := h.billing.CreatePortalSession(user.StripeCustomerID, fmt.Sprintf("%s/account", h.baseURL))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to open billing portal"))
		return
	}
	writeJSON(w, http.StatusOK, RedirectResponse{URL: portalURL})
}
