// Package rangeio formats request Range headers and parses response
// Content-Range headers for the GCS JSON API media surface.
package rangeio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudxfer/gcsmedia/mediaerr"
)

// FormatRange builds the value of a request Range header from optional
// start/end byte offsets:
//
//	start, end both set  -> "bytes=<start>-<end>"
//	only end set         -> "bytes=0-<end>"
//	only start >= 0       -> "bytes=<start>-"   (open-ended tail)
//	only start < 0        -> "bytes=<start>"    (suffix request)
//	neither set           -> "" (header omitted)
func FormatRange(start, end *int64) string {
	switch {
	case start != nil && end != nil:
		return fmt.Sprintf("bytes=%d-%d", *start, *end)
	case start == nil && end != nil:
		return fmt.Sprintf("bytes=0-%d", *end)
	case start != nil && end == nil:
		if *start >= 0 {
			return fmt.Sprintf("bytes=%d-", *start)
		}
		return fmt.Sprintf("bytes=%d", *start)
	default:
		return ""
	}
}

// ContentRange is the parsed form of a response Content-Range header:
// "bytes <Start>-<End>/<Total>".
type ContentRange struct {
	Start int64
	End   int64
	Total int64
}

// ParseContentRange accepts exactly "bytes <a>-<b>/<c>" (case-insensitive
// leading token) with a <= b < c; anything else is an InvalidResponse.
func ParseContentRange(url, value string) (ContentRange, error) {
	const prefix = "bytes "
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return ContentRange{}, mediaerr.NewInvalidResponse(url, nil,
			fmt.Sprintf("malformed Content-Range header: %q", value))
	}
	rest := trimmed[len(prefix):]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return ContentRange{}, mediaerr.NewInvalidResponse(url, nil,
			fmt.Sprintf("malformed Content-Range header: %q", value))
	}
	rangePart, totalPart := rest[:slash], rest[slash+1:]
	dash := strings.IndexByte(rangePart, '-')
	if dash < 0 {
		return ContentRange{}, mediaerr.NewInvalidResponse(url, nil,
			fmt.Sprintf("malformed Content-Range header: %q", value))
	}
	a, errA := strconv.ParseInt(rangePart[:dash], 10, 64)
	b, errB := strconv.ParseInt(rangePart[dash+1:], 10, 64)
	c, errC := strconv.ParseInt(totalPart, 10, 64)
	if errA != nil || errB != nil || errC != nil {
		return ContentRange{}, mediaerr.NewInvalidResponse(url, nil,
			fmt.Sprintf("malformed Content-Range header: %q", value))
	}
	if !(a <= b && b < c) {
		return ContentRange{}, mediaerr.NewInvalidResponse(url, nil,
			fmt.Sprintf("Content-Range header violates a<=b<c: %q", value))
	}
	return ContentRange{Start: a, End: b, Total: c}, nil
}

// String renders cr back into canonical "bytes <a>-<b>/<c>" form.
func (cr ContentRange) String() string {
	return fmt.Sprintf("bytes %d-%d/%d", cr.Start, cr.End, cr.Total)
}

// FormatContentRange builds the request-side Content-Range header used by
// resumable upload chunk transmission. total == nil means the
// length is still unknown ("*"). For the last chunk of a
// stream-of-unknown-length upload the caller passes the now-known total
// (start+n) explicitly.
func FormatContentRange(start, end int64, total *int64) string {
	if total == nil {
		return fmt.Sprintf("bytes %d-%d/*", start, end)
	}
	return fmt.Sprintf("bytes %d-%d/%d", start, end, *total)
}

// FormatUnknownRange builds the recovery-probe Content-Range header:
// "bytes */*".
func FormatUnknownRange() string {
	return "bytes */*"
}

// ParseAcceptedRange parses a response "Range: bytes=0-<k>" header (used by
// 308-incomplete and recover responses) and returns k+1, the number of
// bytes the server has accepted so far.
func ParseAcceptedRange(url, value string) (int64, error) {
	const prefix = "bytes="
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return 0, mediaerr.NewInvalidResponse(url, nil, fmt.Sprintf("malformed Range header: %q", value))
	}
	rest := trimmed[len(prefix):]
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return 0, mediaerr.NewInvalidResponse(url, nil, fmt.Sprintf("malformed Range header: %q", value))
	}
	k, err := strconv.ParseInt(rest[dash+1:], 10, 64)
	if err != nil || k < 0 {
		return 0, mediaerr.NewInvalidResponse(url, nil, fmt.Sprintf("malformed Range header: %q", value))
	}
	return k + 1, nil
}
