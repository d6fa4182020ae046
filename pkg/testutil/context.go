package testutil

import (
	"net/http"

	"kinregistry/pkg/domain"
	"kinregistry/pkg/requestcontext"
)

// WithCaller stamps an authenticated caller onto the request context,
// simulating what the auth middleware does for valid bearer tokens.
func WithCaller(req *http.Request, caller domain.Identity) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithRequestID stamps a correlation ID onto the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
