package cache

import (
	"math/rand/v2"
	"time"
)

const maxJitterPercent = 50

// ExpiryWith computes expires_at = now + ttlBase + jitter, where jitter is
// drawn uniformly from [-offset, +offset] and offset = ttlBase *
// min(jitterPercent, 50) / 100. Spreading expirations this way keeps many
// slots populated around the same time from all going stale in lockstep.
func ExpiryWith(now time.Time, ttlBase time.Duration, jitterPercent int) time.Time {
	if jitterPercent > maxJitterPercent {
		jitterPercent = maxJitterPercent
	}
	if jitterPercent <= 0 || ttlBase <= 0 {
		return now.Add(ttlBase)
	}

	offset := ttlBase * time.Duration(jitterPercent) / 100
	if offset <= 0 {
		return now.Add(ttlBase)
	}

	jitter := time.Duration(rand.Int64N(int64(2*offset))) - offset
	return now.Add(ttlBase + jitter)
}
