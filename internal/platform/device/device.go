// Package device turns raw User-Agent strings into short display names for
// request logs. Nothing here is load-bearing for domain logic.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"kinregistry/pkg/requestcontext"
)

// ParseUserAgent builds a "<browser> on <platform>" display name.
// Unknown or empty agents degrade to a generic label rather than failing.
func ParseUserAgent(rawUA string) string {
	if rawUA == "" {
		return "Unknown Device"
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	platform := ua.Platform()
	if ua.Mobile() && ua.Model() != "" {
		platform = ua.Model()
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if platform == "" {
		platform = ua.OS()
	}
	if platform == "" {
		platform = "Unknown Platform"
	}
	return strings.TrimSpace(browser + " on " + platform)
}

// Middleware stores the parsed device display name in the request context so
// the request logger can attach it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithDeviceName(r.Context(), ParseUserAgent(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
