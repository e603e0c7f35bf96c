package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// TTLFrenchFactors - the daily factor files are republished roughly monthly,
	// a day keeps the cache close to the source without re-downloading per request
	TTLFrenchFactors = 24 * time.Hour
)
