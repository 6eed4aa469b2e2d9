package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"positionledger/src/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("s3cret", "positionledger", time.Hour)

	token, err := tm.Issue(42)
	require.NoError(t, err)

	id, err := tm.Validate(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("s3cret", "positionledger", time.Hour)
	token, err := tm.Issue(7)
	require.NoError(t, err)

	_, err = NewTokenManager("other", "positionledger", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	_, err = NewTokenManager("s3cret", "someone-else", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	expired := NewTokenManager("s3cret", "positionledger", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "7", Issuer: "positionledger"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

	_, err = NewTokenManager("", "positionledger", time.Hour).Issue(1)
	assert.Error(t, err)
}

type stubUsers struct {
	user *model.User
	err  error
}

func (s stubUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	if s.user != nil && s.user.ID != id {
		return nil, nil
	}
	return s.user, s.err
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("s3cret", "positionledger", time.Hour)
	token, err := tm.Issue(5)
	require.NoError(t, err)

	var seen *model.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		users  stubUsers
		want   int
	}{
		{"missing header", "", stubUsers{user: &model.User{ID: 5}}, http.StatusUnauthorized},
		{"not bearer", "Basic abc", stubUsers{user: &model.User{ID: 5}}, http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", stubUsers{user: &model.User{ID: 5}}, http.StatusUnauthorized},
		{"unknown user", "Bearer " + token, stubUsers{user: &model.User{ID: 6}}, http.StatusUnauthorized},
		{"store failure", "Bearer " + token, stubUsers{err: errors.New("db down")}, http.StatusInternalServerError},
		{"ok", "Bearer " + token, stubUsers{user: &model.User{ID: 5}}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/user/order", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			Middleware(tm, tt.users)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.EqualValues(t, 5, seen.ID)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
			}
		})
	}
}
