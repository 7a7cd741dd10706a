// Package fecha centralizes Chilean civil time. All boleta timestamps are
// recorded in America/Santiago regardless of the host timezone.
package fecha

import "time"

var santiago *time.Location

func init() {
	loc, err := time.LoadLocation("America/Santiago")
	if err != nil {
		// tzdata missing on the host, fall back to fixed CLT offset
		loc = time.FixedZone("CLT", -4*3600)
	}
	santiago = loc
}

// Now returns the current time in America/Santiago.
func Now() time.Time {
	return time.Now().In(santiago)
}

// Hoy returns today's date in SII format (YYYY-MM-DD).
func Hoy() string {
	return Now().Format("2006-01-02")
}
