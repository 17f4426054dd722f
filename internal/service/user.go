// Package service contains the business logic layer.
//
// This file implements the user service. Accounts and sessions are issued by
// the identity provider; this service resolves a session token to its user
// and records the Stripe customer created for a user at checkout.
package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/repository"
	"github.com/google/uuid"
)

// SessionTokenLength is the length of a raw session token (32 random bytes,
// hex-encoded).
const SessionTokenLength = 64

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines the user operations this service needs.
type UserService interface {
	// GetBySessionToken retrieves the user owning an unexpired session.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// UpdateStripeCustomer links a Stripe customer to the user.
	UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error

	// DeleteExpiredSessions removes all expired sessions.
	DeleteExpiredSessions(ctx context.Context) error
}

// userQueries is the subset of repository.Queries used by userService.
type userQueries interface {
	GetSessionUserByTokenHash(ctx context.Context, tokenHash string) (repository.GetSessionUserByTokenHashRow, error)
	UpdateUserStripeCustomer(ctx context.Context, arg repository.UpdateUserStripeCustomerParams) error
	DeleteExpiredSessions(ctx context.Context) error
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	queries userQueries
	logger  *slog.Logger
}

// NewUserService creates a new UserService instance.
//
// Dependencies:
// - queries: sqlc-generated database queries
// - logger: structured logger for operation logging
func NewUserService(queries userQueries, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		logger:  logger,
	}
}

// GetBySessionToken retrieves a user by their session token.
//
// The token is hashed before lookup and expired sessions are filtered by the
// query itself. Every failure to resolve returns the same Unauthorized error.
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.GetBySessionToken"

	if len(token) != SessionTokenLength {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	row, err := s.queries.GetSessionUserByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}

	return &domain.User{
		ID:               row.UserID,
		Email:            row.Email,
		Name:             row.Name,
		StripeCustomerID: domain.NullStringValue(row.StripeCustomerID),
		CreatedAt:        row.CreatedAt.Time,
	}, nil
}

// UpdateStripeCustomer links a Stripe customer to the user.
func (s *userService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "UserService.UpdateStripeCustomer"

	err := s.queries.UpdateUserStripeCustomer(ctx, repository.UpdateUserStripeCustomerParams{
		ID:               userID,
		StripeCustomerID: sql.NullString{String: stripeCustomerID, Valid: stripeCustomerID != ""},
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update billing customer")
	}

	s.logger.Info("stripe customer linked", "user_id", userID, "customer_id", stripeCustomerID)
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
// This should be called periodically as a maintenance task.
func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "UserService.DeleteExpiredSessions"

	if err := s.queries.DeleteExpiredSessions(ctx); err != nil {
		return domain.Internal(err, op, "Failed to delete expired sessions")
	}

	s.logger.Info("expired sessions cleaned up")
	return nil
}

// hashSessionToken creates a SHA-256 hash of a session token.
//
// Session tokens are high-entropy random values, so a fast hash is enough to
// keep a leaked table from being usable directly.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
