package blobstore

import (
	"fmt"
	"strings"
	"time"
)

// httpDateLayout matches "<weekday>, <day> <month> <year> <HH>:<MM>:<SS>"
// with the trailing " GMT" stripped. The day is not zero-padded, so both
// "Thu, 1 Jan 1970" and "Mon, 16 Apr 2018" parse; strict RFC 1123 parsers
// reject the single-digit form some S3-compatible gateways emit.
const httpDateLayout = "Mon, 2 Jan 2006 15:04:05"

// ParseHTTPDate converts an HTTP Last-Modified style timestamp into a UTC
// instant. A trailing " GMT" literal is stripped if present; anything that
// does not fit the layout fails with ErrMalformedTimestamp. No zone other
// than UTC is ever produced.
func ParseHTTPDate(raw string) (time.Time, error) {
	t, err := time.Parse(httpDateLayout, strings.TrimSuffix(raw, " GMT"))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
	}
	return t.UTC(), nil
}

// FormatHTTPDate renders t in the layout ParseHTTPDate accepts.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(httpDateLayout) + " GMT"
}
