package generation

import "golang.org/x/time/rate"

// newTestLimiter returns a limiter whose single token is already spent.
func newTestLimiter() *rate.Limiter {
	l := rate.NewLimiter(rate.Limit(0.001), 1)
	l.Allow()
	return l
}
