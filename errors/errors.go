package errors

import "errors"

// Kind is one of the five failure categories.
type Kind int

// Failure kinds, ordered as they appear in exit code tables.
const (
	KindValidation Kind = iota + 1
	KindAuth
	KindAPI
	KindNetwork
	KindUnexpected
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitValidation = 2
	ExitAPI        = 3
	ExitNetwork    = 4
	ExitUnexpected = 5
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("auth error")
	ErrAPI        = errors.New("api error")
	ErrNetwork    = errors.New("network error")
	ErrUnexpected = errors.New("unexpected error")
)

// Kinds lists every kind in order.
func Kinds() []Kind {
	return []Kind{KindValidation, KindAuth, KindAPI, KindNetwork, KindUnexpected}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuth:
		return "AuthError"
	case KindAPI:
		return "ApiError"
	case KindNetwork:
		return "NetworkError"
	default:
		return "UnexpectedError"
	}
}

// ExitCode returns the process exit code for the kind.
// Auth and general API failures share code 3.
func (k Kind) ExitCode() int {
	switch k {
	case KindValidation:
		return ExitValidation
	case KindAuth, KindAPI:
		return ExitAPI
	case KindNetwork:
		return ExitNetwork
	default:
		return ExitUnexpected
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindAuth:
		return ErrAuth
	case KindAPI:
		return ErrAPI
	case KindNetwork:
		return ErrNetwork
	default:
		return ErrUnexpected
	}
}
