package auth

import "errors"

var (
	// ErrInvalidToken indicates the token is malformed, has a bad signature or
	// carries unexpected claims.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token is not yet valid (nbf claim in the future).
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingToken indicates a token was expected but not provided.
	ErrMissingToken = errors.New("authentication token is missing")

	// ErrMissingSubject indicates a token was requested without a subject.
	ErrMissingSubject = errors.New("token subject is required")
)
