package poll

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pollwatch/pollwatch/internal/domain"
)

const (
	tokenPrefix    = "vote"
	tokenSeparator = "_"
)

// VoteToken builds the correlation token embedded in a ballot affordance.
// The format "vote_<optionIndex>_<pollID>" is a persisted part of the poll's
// public contract and must stay stable across releases.
func VoteToken(optionIndex int, pollID string) string {
	return fmt.Sprintf("%s%s%d%s%s", tokenPrefix, tokenSeparator, optionIndex, tokenSeparator, pollID)
}

// ParseVoteToken parses a correlation token back into its option index and
// poll ID. Parsing is strict and rejecting: anything that is not exactly
// prefix, a non-negative decimal index, and a non-empty poll ID fails.
// Poll IDs may themselves contain the separator, so only the first two
// fields are split off.
func ParseVoteToken(token string) (optionIndex int, pollID string, err error) {
	parts := strings.SplitN(token, tokenSeparator, 3)
	if len(parts) != 3 || parts[0] != tokenPrefix || parts[2] == "" {
		return 0, "", domain.ErrInvalidToken
	}

	if !isDigits(parts[1]) {
		return 0, "", domain.ErrInvalidToken
	}
	optionIndex, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", domain.ErrInvalidToken
	}

	return optionIndex, parts[2], nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
