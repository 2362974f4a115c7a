package gateway

import "time"

// rfc3339Milli is the millisecond-precision ISO-8601 UTC format spec.md §6
// requires for every timestamp field in a response body.
const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

func unixMilliString(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format(rfc3339Milli)
}
