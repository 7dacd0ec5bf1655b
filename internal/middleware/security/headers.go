package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginResource string
	// CacheControl is applied to every response; API payloads carry
	// per-user financial data.
	CacheControl string
}

// DefaultHeadersConfig returns defaults for a JSON API that never serves
// documents or scripts.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
	}
}

// Headers returns middleware applying cfg to every response.
func Headers(cfg HeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			setIf(h, "Content-Security-Policy", cfg.CSP)
			setIf(h, "X-Frame-Options", cfg.XFrameOptions)
			setIf(h, "X-Content-Type-Options", cfg.XContentTypeOptions)
			setIf(h, "Referrer-Policy", cfg.ReferrerPolicy)
			setIf(h, "Permissions-Policy", cfg.PermissionsPolicy)
			setIf(h, "Cross-Origin-Resource-Policy", cfg.CrossOriginResource)
			setIf(h, "Cache-Control", cfg.CacheControl)

			if r.TLS != nil && cfg.HSTSMaxAge > 0 {
				hsts := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
				if cfg.HSTSIncludeSubdomains {
					hsts += "; includeSubDomains"
				}
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
