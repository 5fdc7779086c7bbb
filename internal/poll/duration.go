package poll

import (
	"regexp"
	"strconv"
	"time"

	"github.com/pollwatch/pollwatch/internal/domain"
)

var durationPattern = regexp.MustCompile(`^(\d+)([hmd])$`)

// ParseDuration converts a short human duration token ("30m", "1h", "2d")
// into a time span. The value must be a positive integer; zero is rejected
// because a poll that ends the moment it opens can never collect a vote.
func ParseDuration(token string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(token)
	if match == nil {
		return 0, domain.ErrInvalidDuration
	}

	value, err := strconv.Atoi(match[1])
	if err != nil || value <= 0 {
		return 0, domain.ErrInvalidDuration
	}

	switch match[2] {
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	}
	return 0, domain.ErrInvalidDuration
}
