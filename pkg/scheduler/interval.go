package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var intervalTokenRe = regexp.MustCompile(`(\d+)\s*([wdhms])`)

// unitDuration maps each interval grammar unit to its duration; a
// week is treated as exactly 7*24h, with no calendar adjustment.
var unitDuration = map[byte]time.Duration{
	'w': 7 * 24 * time.Hour,
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// ParseInterval parses the "Nw Nd Nh Nm Ns" run_frequency grammar
// (spec.md §4.9): each unit is optional, and present units add
// together. Units may appear with or without separating whitespace
// (e.g. "1h30m" and "1h 30m" are equivalent).
func ParseInterval(s string) (time.Duration, error) {
	matches := intervalTokenRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid interval %q: no recognized Nw/Nd/Nh/Nm/Ns tokens", s)
	}

	var total time.Duration
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", s, err)
		}
		total += time.Duration(n) * unitDuration[m[2][0]]
	}

	if total <= 0 {
		return 0, fmt.Errorf("invalid interval %q: duration must be positive", s)
	}
	return total, nil
}
