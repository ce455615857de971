package auth

import "errors"

var (
	// ErrAuthentication covers bad or unknown credentials and unsupported
	// credential types. It is the only pipeline stage that fails with an error;
	// authorization and validation outcomes are plain decision values.
	ErrAuthentication = errors.New("auth: authentication failed")

	// ErrInvalidToken indicates a bearer token failed signature or claim checks.
	ErrInvalidToken = errors.New("auth: invalid token")

	ErrInvalidInput = errors.New("auth: invalid input")
	ErrTokenExists  = errors.New("auth: token already exists")

	// ErrNotEnabled is returned by token lifecycle operations when no token
	// manager is configured.
	ErrNotEnabled = errors.New("auth: token authentication is not enabled")
)
