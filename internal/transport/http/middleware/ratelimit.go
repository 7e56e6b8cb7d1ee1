package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// KeyLimiter admits or rejects a request for key.
type KeyLimiter interface {
	Allow(key string) bool
}

// retryHinter is implemented by limiters that know their refill interval.
type retryHinter interface {
	RetryAfter() time.Duration
}

// RateLimit rejects requests with 429 once the client IP exhausts its budget.
// Forwarding headers are consulted only when trustProxy is set; otherwise the
// key is the connection's peer address.
func RateLimit(l KeyLimiter, trustProxy bool) func(http.Handler) http.Handler {
	clientIP := remoteHost
	if trustProxy {
		clientIP = realIP
	}
	wait := time.Second
	if h, ok := l.(retryHinter); ok {
		wait = h.RetryAfter()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				writeTooManyRequests(w, wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// realIP prefers the first X-Forwarded-For hop, then X-Real-Ip, then the
// connection's remote address.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xr != "" {
		return xr
	}
	return remoteHost(r)
}

// remoteHost is the connection's peer address without the port.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
