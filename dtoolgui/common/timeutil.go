package common

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// lookup servers report timestamps either as epoch seconds or in one of these layouts
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999",
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02 15:04:05",
}

// ParseTimestamp converts an integer/float epoch or a lookup server string into a UTC time.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrMalformedResponse)
	case time.Time:
		return t.UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case float64:
		sec, frac := math.Modf(t)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", ErrMalformedResponse, t, err)
		}
		return ParseTimestamp(f)
	case string:
		s := strings.TrimSpace(t)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return ParseTimestamp(f)
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: unrecognised timestamp %q", ErrMalformedResponse, s)
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported timestamp type %T", ErrMalformedResponse, v)
	}
}

// FormatSize renders a byte count for display; nil means unknown (proto datasets).
func FormatSize(size *int64) string {
	if size == nil || *size < 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(*size))
}
