package errors

import (
	"errors"
	"strings"
)

// KindOf returns the kind of a classified error. Unclassified non-nil
// errors are unexpected; nil has kind 0.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// ExitCode maps err onto the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return KindOf(err).ExitCode()
}

// Classify returns err as an *Error, treating unclassified errors as unexpected.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindUnexpected, Message: err.Error(), Err: err}
}

// IsValidation checks if an error is a configuration or input failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAuth checks if an error is authentication-related.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsAPI checks if an error is a non-auth API failure.
func IsAPI(err error) bool {
	return errors.Is(err, ErrAPI)
}

// IsNetwork checks if an error is connection-related.
// This includes TLS errors, timeouts, and network connectivity issues.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsUnexpected checks if an error falls outside the other four kinds.
func IsUnexpected(err error) bool {
	return err != nil && KindOf(err) == KindUnexpected
}

// Sanitize replaces every occurrence of each non-empty secret in text with
// a redaction marker.
func Sanitize(text string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, secret, "[REDACTED]")
	}
	return text
}
