package xtime

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Calendar units in addition to the ones supported by time.ParseDuration.
var units = map[byte]time.Duration{
	'd': day,
	'D': day,
	'w': 7 * day,
	'W': 7 * day,
	'M': 30 * day,
	'y': 365 * day,
	'Y': 365 * day,
}

var componentRx = regexp.MustCompile(`(\d*\.\d+|\d+)([^\d.]*)`)

// ParseDuration parses a duration string, accepting the units of
// time.ParseDuration plus "d"/"D" (day), "w"/"W" (week), "M" (30 days) and
// "y"/"Y" (365 days), e.g. "10d", "-1.5w" or "3Y4M5d".
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return 0, fmt.Errorf("invalid duration '%s'", orig)
	}

	var total time.Duration
	for _, m := range componentRx.FindAllStringSubmatch(s, -1) {
		num, unit := m[1], m[2]
		if len(unit) == 1 {
			if mult, ok := units[unit[0]]; ok {
				d, err := time.ParseDuration(num + "h")
				if err != nil {
					return 0, err
				}
				total += time.Duration(float64(d) / float64(time.Hour) * float64(mult))
				continue
			}
		}
		d, err := time.ParseDuration(num + unit)
		if err != nil {
			return 0, fmt.Errorf("invalid duration '%s': %w", orig, err)
		}
		total += d
	}

	if neg {
		total = -total
	}

	return total, nil
}

// FormatDuration formats a duration with the units accepted by ParseDuration,
// largest first, e.g. "3Y4M5d" or "-1w2d". Units smaller than round are
// omitted.
func FormatDuration(d, round time.Duration) string {
	if round > 0 {
		d = d.Round(round)
	}
	if d == 0 {
		return "0d"
	}

	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}

	for _, u := range []struct {
		size time.Duration
		sym  string
	}{
		{365 * day, "Y"}, {30 * day, "M"}, {7 * day, "w"}, {day, "d"},
		{time.Hour, "h"}, {time.Minute, "m"}, {time.Second, "s"},
		{time.Millisecond, "ms"}, {time.Microsecond, "µs"}, {time.Nanosecond, "ns"},
	} {
		if u.size < round {
			break
		}
		if n := d / u.size; n > 0 {
			fmt.Fprintf(&sb, "%d%s", n, u.sym)
			d -= n * u.size
		}
	}

	if sb.Len() == 0 || sb.String() == "-" {
		return "0d"
	}

	return sb.String()
}
