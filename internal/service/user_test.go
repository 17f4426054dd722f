package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserQueries struct {
	sessions     map[string]repository.GetSessionUserByTokenHashRow
	lookupErr    error
	customers    map[uuid.UUID]string
	updateErr    error
	deleteCalled bool
}

func (f *fakeUserQueries) GetSessionUserByTokenHash(_ context.Context, tokenHash string) (repository.GetSessionUserByTokenHashRow, error) {
	if f.lookupErr != nil {
		return repository.GetSessionUserByTokenHashRow{}, f.lookupErr
	}
	row, ok := f.sessions[tokenHash]
	if !ok {
		return repository.GetSessionUserByTokenHashRow{}, sql.ErrNoRows
	}
	return row, nil
}

func (f *fakeUserQueries) UpdateUserStripeCustomer(_ context.Context, arg repository.UpdateUserStripeCustomerParams) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.customers == nil {
		f.customers = map[uuid.UUID]string{}
	}
	f.customers[arg.ID] = arg.StripeCustomerID.String
	return nil
}

func (f *fakeUserQueries) DeleteExpiredSessions(context.Context) error {
	f.deleteCalled = true
	return nil
}

func TestHashSessionToken(t *testing.T) {
	h := hashSessionToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
	assert.NotEqual(t, h, hashSessionToken("abd"))
}

func TestUserService_GetBySessionToken(t *testing.T) {
	token := strings.Repeat("a1", 32)
	userID := uuid.New()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	q := &fakeUserQueries{sessions: map[string]repository.GetSessionUserByTokenHashRow{
		hashSessionToken(token): {
			SessionID:        uuid.New(),
			ExpiresAt:        created.Add(24 * time.Hour),
			UserID:           userID,
			Email:            "writer@example.com",
			Name:             "Sam",
			StripeCustomerID: sql.NullString{String: "cus_123", Valid: true},
			CreatedAt:        sql.NullTime{Time: created, Valid: true},
		},
	}}
	svc := NewUserService(q, discardLogger())
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		u, err := svc.GetBySessionToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, u.ID)
		assert.Equal(t, "writer@example.com", u.Email)
		assert.Equal(t, "cus_123", u.StripeCustomerID)
		assert.Equal(t, created, u.CreatedAt)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := svc.GetBySessionToken(ctx, "short")
		assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.GetBySessionToken(ctx, strings.Repeat("b2", 32))
		assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
	})

	t.Run("database failure", func(t *testing.T) {
		broken := NewUserService(&fakeUserQueries{lookupErr: errors.New("connection reset")}, discardLogger())
		_, err := broken.GetBySessionToken(ctx, token)
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	})
}

func TestUserService_UpdateStripeCustomer(t *testing.T) {
	q := &fakeUserQueries{}
	svc := NewUserService(q, discardLogger())
	id := uuid.New()

	require.NoError(t, svc.UpdateStripeCustomer(context.Background(), id, "cus_9"))
	assert.Equal(t, "cus_9", q.customers[id])

	q.updateErr = errors.New("boom")
	err := svc.UpdateStripeCustomer(context.Background(), id, "cus_10")
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestUserService_DeleteExpiredSessions(t *testing.T) {
	q := &fakeUserQueries{}
	svc := NewUserService(q, discardLogger())
	require.NoError(t, svc.DeleteExpiredSessions(context.Background()))
	assert.True(t, q.deleteCalled)
}
