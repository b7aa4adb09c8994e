package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoRefreshToken     = errors.New("no refresh token stored")
	ErrMissingAccessToken = errors.New("response carried no access token")
	ErrMalformedToken     = errors.New("malformed token")
)
