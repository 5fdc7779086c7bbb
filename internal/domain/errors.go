package domain

import "errors"

// Expected rejections are sentinel errors so callers can map them to
// user-facing notifications. They are never logged as faults.
var (
	ErrPollNotFound    = errors.New("poll not found")
	ErrPollClosed      = errors.New("poll is closed")
	ErrAlreadyVoted    = errors.New("voter has already cast a ballot")
	ErrInvalidOption   = errors.New("option index out of range")
	ErrInvalidDuration = errors.New("invalid duration format")
	ErrInvalidToken    = errors.New("invalid vote token")
	ErrInvalidQuestion = errors.New("question must not be empty")
	ErrInvalidOptions  = errors.New("polls need 2 to 3 non-empty options")
)
