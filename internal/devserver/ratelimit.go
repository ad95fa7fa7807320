package devserver

import "golang.org/x/time/rate"

// messageLimiter throttles sendMessage per connection. A nil limiter allows everything.
type messageLimiter struct {
	limiter *rate.Limiter
}

func newMessageLimiter(perSecond float64, burst int) *messageLimiter {
	if perSecond <= 0 {
		return &messageLimiter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &messageLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (m *messageLimiter) allow() bool {
	if m == nil || m.limiter == nil {
		return true
	}
	return m.limiter.Allow()
}
