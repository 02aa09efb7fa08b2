package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpiryWith_StaysWithinConfiguredBound(t *testing.T) {
	now := time.Now()
	ttl := 100 * time.Second
	for i := 0; i < 200; i++ {
		expiry := ExpiryWith(now, ttl, 20)
		delta := expiry.Sub(now) - ttl
		if delta < 0 {
			delta = -delta
		}
		assert.LessOrEqual(t, delta, ttl*20/100)
	}
}

func TestExpiryWith_CapsJitterPercentAt50(t *testing.T) {
	now := time.Now()
	ttl := 100 * time.Second
	for i := 0; i < 200; i++ {
		expiry := ExpiryWith(now, ttl, 90)
		delta := expiry.Sub(now) - ttl
		if delta < 0 {
			delta = -delta
		}
		assert.LessOrEqual(t, delta, ttl*50/100)
	}
}

func TestExpiryWith_ZeroJitterIsExact(t *testing.T) {
	now := time.Now()
	ttl := 30 * time.Second
	assert.Equal(t, now.Add(ttl), ExpiryWith(now, ttl, 0))
}
