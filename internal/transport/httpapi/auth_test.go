package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
)

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator("  ", nil)
	require.ErrorIs(t, err, ErrSecretRequired)
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, nil)
	require.NoError(t, err)

	token, err := auth.Issue(domain.Customer{
		ID:                 "c-1",
		Email:              "c1@example.com",
		DiscountPercentage: decimal.RequireFromString("12.5"),
	}, time.Minute)
	require.NoError(t, err)

	customer, err := auth.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "c-1", customer.ID)
	assert.Equal(t, "c1@example.com", customer.Email)
	assert.True(t, customer.DiscountPercentage.Equal(decimal.RequireFromString("12.5")))
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, nil)
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := auth.Issue(domain.Customer{ID: "c-1"}, time.Hour)
	require.NoError(t, err)
	auth.now = time.Now

	_, err = auth.Parse(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other, err := NewAuthenticator("another-secret", nil)
	require.NoError(t, err)
	foreign, err := other.Issue(domain.Customer{ID: "c-1"}, time.Hour)
	require.NoError(t, err)
	_, err = auth.Parse(foreign)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	noSubject, err := auth.Issue(domain.Customer{}, time.Hour)
	require.NoError(t, err)
	_, err = auth.Parse(noSubject)
	assert.ErrorIs(t, err, domain.ErrCustomerRequired)
}

func TestParseRole(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, nil)
	require.NoError(t, err)

	cases := []struct {
		name string
		role string
		want domain.Role
	}{
		{"missing", "", domain.RoleCustomer},
		{"customer", "customer", domain.RoleCustomer},
		{"operator", "operator", domain.RoleOperator},
		{"unknown", "admin", domain.RoleCustomer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
				Role: tc.role,
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "c-1",
					Issuer:    "storefront",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}).SignedString([]byte(testSecret))
			require.NoError(t, err)

			customer, err := auth.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, customer.Role)
		})
	}
}

func TestParseIgnoresMalformedDiscount(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, nil)
	require.NoError(t, err)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DiscountPercentage: "a lot",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "c-1",
			Issuer:    "storefront",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	customer, err := auth.Parse(raw)
	require.NoError(t, err)
	assert.True(t, customer.DiscountPercentage.IsZero())
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotAuthenticated, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("set status: %w", domain.ErrForbidden), http.StatusForbidden, "forbidden"},
		{fmt.Errorf("add: %w", domain.ErrProductNotFound), http.StatusNotFound, "product_not_found"},
		{domain.ErrEmptyCart, http.StatusConflict, "empty_cart"},
		{fmt.Errorf("%w: pending -> pending", domain.ErrInvalidTransition), http.StatusConflict, "invalid_transition"},
		{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_argument"},
		{domain.PersistenceError("save cart", errors.New("disk full")), http.StatusServiceUnavailable, "persistence_failure"},
		{idempotency.ErrRequestInProgress, http.StatusConflict, "request_in_progress"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			status, code := errorStatus(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, code)
		})
	}
}
