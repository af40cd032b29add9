// Package globaltime centralizes "now" so commands and the engine agree on UTC.
package globaltime

import "time"

// UTC returns the current time in UTC.
func UTC() time.Time {
	return time.Now().UTC()
}
