package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Coordinates are rounded to 4 decimal places (~11 m) before they enter
// the key, so requests for the same field collide in the cache instead
// of fragmenting it with GPS jitter.
const coordPrecision = "%.4f"

// Key identifies a nutrient-analysis request for caching purposes.
// Two requests that would legitimately reuse the same upstream answer
// must produce the same Key.
type Key struct {
	Latitude  float64
	Longitude float64
	Date      time.Time
	Crop      string
	Source    string
}

// NewKey builds a Key for the given request parameters. Source is "any"
// because a cached answer from one provider serves the request
// regardless of which provider would have been walked.
func NewKey(lat, lon float64, date time.Time, crop string) Key {
	return Key{
		Latitude:  lat,
		Longitude: lon,
		Date:      date,
		Crop:      strings.ToUpper(strings.TrimSpace(crop)),
		Source:    "any",
	}
}

// normalized produces the canonical encoding that is hashed. Field order
// is fixed, coordinates rounded, crop upper-cased, date truncated to day.
func (k Key) normalized() string {
	return fmt.Sprintf(coordPrecision+"_"+coordPrecision+"_%s_%s_%s",
		k.Latitude, k.Longitude, k.Date.UTC().Format("2006-01-02"), k.Crop, k.Source)
}

// String converts the structured key into the final string used in
// Redis/map lookups: npk:<CROP>:<DATE>:<HASH_HEX>.
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.normalized()))
	hash := hex.EncodeToString(sum[:])
	return fmt.Sprintf("npk:%s:%s:%s", k.Crop, k.Date.UTC().Format("2006-01-02"), hash[:32])
}
