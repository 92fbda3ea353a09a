package models

import (
	"fmt"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

func AlreadyValidatedError(otpID id.OneTimePasswordID) error {
	return dErrors.New(dErrors.CodeAlreadyValidated, fmt.Sprintf("one-time password %s was already validated", otpID))
}

func ExpiredError(otpID id.OneTimePasswordID) error {
	return dErrors.New(dErrors.CodeOneTimePasswordExpired, fmt.Sprintf("one-time password %s is expired", otpID))
}

func MaximumAttemptsReachedError(otpID id.OneTimePasswordID, attempts int) error {
	return dErrors.New(dErrors.CodeMaximumAttemptsReached,
		fmt.Sprintf("one-time password %s reached its maximum of %d attempts", otpID, attempts))
}
