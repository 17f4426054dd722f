// Package domain contains core business types and interfaces.
//
// This file defines the authenticated user and session types. Accounts and
// sessions are issued by the identity provider; this service only resolves a
// session token to the user it belongs to.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is the authenticated account making a request.
type User struct {
	ID               uuid.UUID
	Email            string
	Name             string
	StripeCustomerID string
	CreatedAt        time.Time
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored with a hashed token. The raw token is only ever held
// by the client.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// NullInt64Value extracts a nullable integer pointer from sql.NullInt64.
func NullInt64Value(ni sql.NullInt64) *int64 {
	if ni.Valid {
		n := ni.Int64
		return &n
	}
	return nil
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ToNullInt64 converts an integer pointer to sql.NullInt64.
func ToNullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
