package client

import (
	"math"

	"golang.org/x/time/rate"
)

// newRequestLimiter returns a token bucket allowing perSecond requests with a
// burst of one second's worth, or nil when perSecond is not positive.
func newRequestLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(perSecond))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
