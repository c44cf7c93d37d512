package models

import (
	"errors"
)

// Purchase failure taxonomy. All of these resolve an attempt into the failed
// state with a user-facing message; none of them crash the application.
var (
	ErrAdapterUnavailable = errors.New("billing provider is not available")
	ErrUserCancelled      = errors.New("purchase was cancelled")
	ErrNetwork            = errors.New("network error while contacting billing provider")
	ErrVerificationFailed = errors.New("billing provider rejected the purchase")
	ErrDuplicateAttempt   = errors.New("purchase attempt is already being processed")
	ErrUnknownFailure     = errors.New("purchase failed")
)

var (
	ErrInvalidTransition = errors.New("invalid purchase attempt transition")
	ErrItemNotFound      = errors.New("catalog item not found")
)

var (
	ErrAdNotReady         = errors.New("rewarded ad is not ready")
	ErrSubscriberExcluded = errors.New("subscribed players cannot claim ad rewards")
	ErrRewardAlreadyGiven = errors.New("reward already credited for this ad view")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Billing decline codes carried on adapter outcomes.
const (
	FailureCodeUnavailable  = "unavailable"
	FailureCodeCancelled    = "user_cancelled"
	FailureCodeNetwork      = "network"
	FailureCodeVerification = "verification_failed"
	FailureCodeUnknown      = "unknown"
)

// FailureFromCode maps a decline code from a billing adapter outcome onto the
// taxonomy sentinel. Unrecognized codes fail safe to ErrUnknownFailure.
func FailureFromCode(code string) error {
	switch code {
	case FailureCodeUnavailable:
		return ErrAdapterUnavailable
	case FailureCodeCancelled:
		return ErrUserCancelled
	case FailureCodeNetwork:
		return ErrNetwork
	case FailureCodeVerification:
		return ErrVerificationFailed
	default:
		return ErrUnknownFailure
	}
}
