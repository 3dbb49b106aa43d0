package middleware

import (
	"net/http"
)

// SecurityHeaders returns a middleware handler that adds security headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")
		
		// Enable XSS protection in browsers
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		
		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")
		
		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		
		// Content Security Policy - the relay serves JSON only, so nothing
		// may load anything
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		
		// Strict Transport Security - enforce HTTPS (only add if using HTTPS)
		// Note: This should only be enabled in production with proper HTTPS setup
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		
		// Permissions Policy - restrict browser features
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		next.ServeHTTP(w, r)
	})
}
