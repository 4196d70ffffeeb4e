package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver records finished requests.
type HTTPObserver interface {
	ObserveHTTP(route, method string, code int, elapsed time.Duration)
}

// Metrics reports every request to obs labelled by its chi route pattern.
func Metrics(obs HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)
			next.ServeHTTP(rw, r)
			obs.ObserveHTTP(routePattern(r), r.Method, rw.status, time.Since(start))
		})
	}
}
