package middleware_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"kinregistry/internal/auth/revocation/mocks"
	"kinregistry/internal/auth/token"
	"kinregistry/internal/platform/middleware"
	"kinregistry/pkg/domain"
	"kinregistry/pkg/requestcontext"
	"kinregistry/pkg/testutil"
)

const signingKey = "test-signing-key"

func newStack(t *testing.T, revoked middleware.RevocationChecker) (http.Handler, *token.Service, *domain.Identity) {
	t.Helper()

	tokens := token.NewService(signingKey, "kinregistry", "kinregistry")
	validator := token.NewMiddlewareAdapter(tokens)

	var seen domain.Identity
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Caller(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return middleware.RequireAuth(validator, revoked, logger)(inner), tokens, &seen
}

func TestRequireAuth(t *testing.T) {
	ctrl := gomock.NewController(t)

	testutil.Given(t, "a valid unrevoked token", func(t *testing.T) {
		trl := mocks.NewMockStore(ctrl)
		trl.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, nil)

		handler, tokens, seen := newStack(t, trl)
		signed, err := tokens.Mint("alice", time.Hour)
		require.NoError(t, err)

		req := testutil.NewRequest(t, http.MethodGet, "/registry/users/alice")
		req.Header.Set("Authorization", "Bearer "+signed)
		rr := testutil.DoRequest(handler, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, domain.Identity("alice"), *seen)
	})

	testutil.Given(t, "no authorization header", func(t *testing.T) {
		handler, _, _ := newStack(t, nil)
		rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/"))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	testutil.Given(t, "a garbage token", func(t *testing.T) {
		handler, _, seen := newStack(t, nil)
		req := testutil.NewRequest(t, http.MethodGet, "/")
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rr := testutil.DoRequest(handler, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.True(t, (*seen).IsZero())
	})

	testutil.Given(t, "an expired token", func(t *testing.T) {
		handler, tokens, _ := newStack(t, nil)
		signed, err := tokens.Mint("alice", -time.Minute)
		require.NoError(t, err)

		req := testutil.NewRequest(t, http.MethodGet, "/")
		req.Header.Set("Authorization", "Bearer "+signed)
		rr := testutil.DoRequest(handler, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	testutil.Given(t, "a revoked token", func(t *testing.T) {
		trl := mocks.NewMockStore(ctrl)
		trl.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(true, nil)

		handler, tokens, seen := newStack(t, trl)
		signed, err := tokens.Mint("alice", time.Hour)
		require.NoError(t, err)

		req := testutil.NewRequest(t, http.MethodGet, "/")
		req.Header.Set("Authorization", "Bearer "+signed)
		rr := testutil.DoRequest(handler, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.True(t, (*seen).IsZero())
	})

	testutil.Given(t, "an unavailable revocation backend", func(t *testing.T) {
		trl := mocks.NewMockStore(ctrl)
		trl.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

		handler, tokens, _ := newStack(t, trl)
		signed, err := tokens.Mint("alice", time.Hour)
		require.NoError(t, err)

		req := testutil.NewRequest(t, http.MethodGet, "/")
		req.Header.Set("Authorization", "Bearer "+signed)
		rr := testutil.DoRequest(handler, req)

		// Fail closed: an unanswerable revocation question is not a pass.
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var got string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = requestcontext.RequestID(r.Context())
	}))

	t.Run("generates an ID when none is supplied", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, got)
		assert.Equal(t, got, rr.Header().Get("X-Request-ID"))
	})

	t.Run("honors an inbound X-Request-ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream-42")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, "upstream-42", got)
		assert.Equal(t, "upstream-42", rr.Header().Get("X-Request-ID"))
	})
}
