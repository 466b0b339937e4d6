package errors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error is a classified failure with user-facing context.
type Error struct {
	// Kind is the failure category. It never changes once set.
	Kind Kind

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string

	// Option names the configuration option or input field at fault.
	Option string

	// StatusCode is the HTTP status of the last response, 0 if none arrived.
	StatusCode int

	// Body is the decoded error body returned by the API, if any.
	Body any

	// RequestID identifies the failing request for support tickets.
	RequestID string

	// Attempts is how many HTTP attempts were made before giving up.
	Attempts int

	// Err is the underlying error
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// ExitCode returns the exit code of the error's kind.
func (e *Error) ExitCode() int {
	return e.Kind.ExitCode()
}

// Messenger provides customizable error messages.
type Messenger interface {
	// MissingOptionMessage is used when a required option has no value in any source.
	MissingOptionMessage(option string) (message, suggestion string)

	// AuthFailedMessage is used for 401 and 403 responses.
	AuthFailedMessage(status int) (message, suggestion string)

	// APIFailedMessage is used for every other non-2xx response.
	APIFailedMessage(status int, detail string) (message, suggestion string)

	// RateLimitedMessage is used for 429 responses.
	RateLimitedMessage(retryAfter string) (message, suggestion string)

	// ConnectionErrorMessage is used when the server cannot be reached.
	ConnectionErrorMessage(serverURL string) (message, suggestion string)

	// TLSErrorMessage is used for TLS/certificate errors.
	TLSErrorMessage(serverURL string) (message, suggestion string)

	// TimeoutErrorMessage is used when an attempt exceeds its deadline.
	TimeoutErrorMessage(serverURL string) (message, suggestion string)

	// MalformedResponseMessage is used when a 2xx body is not JSON.
	MalformedResponseMessage(status int) (message, suggestion string)
}

// DefaultMessenger provides the EmailBison messages.
type DefaultMessenger struct{}

func (m DefaultMessenger) MissingOptionMessage(option string) (string, string) {
	return fmt.Sprintf("Missing %s.", option),
		fmt.Sprintf("Set EMAILBISON_%s or add %s to config.toml.", strings.ToUpper(option), option)
}

func (m DefaultMessenger) AuthFailedMessage(status int) (string, string) {
	return fmt.Sprintf("Auth failed (%d).", status),
		"Set EMAILBISON_API_TOKEN or config api_token."
}

func (m DefaultMessenger) APIFailedMessage(status int, detail string) (string, string) {
	if detail != "" {
		return fmt.Sprintf("API error (%d): %s", status, detail), ""
	}
	return fmt.Sprintf("API error (%d).", status), ""
}

func (m DefaultMessenger) RateLimitedMessage(retryAfter string) (string, string) {
	msg := "Rate limited (429)."
	if retryAfter != "" {
		msg += " Retry-After: " + retryAfter
	}
	return msg, "Wait before retrying or raise retries/timeout_seconds."
}

func (m DefaultMessenger) ConnectionErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Cannot connect to EmailBison at %s", serverURL),
		"Check that:\n  - The base_url is correct\n  - Your network connection is working"
}

func (m DefaultMessenger) TLSErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("TLS/certificate error connecting to %s", serverURL),
		"Check that the server certificate is valid."
}

func (m DefaultMessenger) TimeoutErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Network timeout calling EmailBison at %s", serverURL),
		"The server may be overloaded or unreachable.\nTry again or raise timeout_seconds."
}

func (m DefaultMessenger) MalformedResponseMessage(status int) (string, string) {
	return fmt.Sprintf("EmailBison returned a non-JSON response (%d).", status), ""
}

// WrapConfig configures error construction.
type WrapConfig struct {
	Messenger Messenger
}

// Option configures WrapConfig.
type Option func(*WrapConfig)

// WithMessenger sets a custom error messenger.
func WithMessenger(m Messenger) Option {
	return func(c *WrapConfig) {
		c.Messenger = m
	}
}

func getMessenger(opts []Option) Messenger {
	cfg := &WrapConfig{
		Messenger: DefaultMessenger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.Messenger
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind. An err that is already classified is
// returned unchanged.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: kind, Message: message, Details: err.Error(), Err: err}
}

// Validation reports an invalid option or input field.
func Validation(option, reason string) *Error {
	return &Error{
		Kind:    KindValidation,
		Option:  option,
		Message: fmt.Sprintf("%s: %s", option, reason),
	}
}

// Validationf is Validation with a formatted reason.
func Validationf(option, format string, args ...any) *Error {
	return Validation(option, fmt.Sprintf(format, args...))
}

// NewMissingOption reports a required option absent from every source.
func NewMissingOption(option string, opts ...Option) *Error {
	msg, suggestion := getMessenger(opts).MissingOptionMessage(option)
	return &Error{
		Kind:       KindValidation,
		Option:     option,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// NewAuthError reports a 401 or 403 response.
func NewAuthError(status int, body any, opts ...Option) *Error {
	msg, suggestion := getMessenger(opts).AuthFailedMessage(status)
	return &Error{
		Kind:       KindAuth,
		Message:    msg,
		Suggestion: suggestion,
		StatusCode: status,
		Body:       body,
	}
}

// NewAPIError reports a non-2xx response that is not an auth failure.
func NewAPIError(status int, detail string, body any, opts ...Option) *Error {
	msg, suggestion := getMessenger(opts).APIFailedMessage(status, detail)
	return &Error{
		Kind:       KindAPI,
		Message:    msg,
		Suggestion: suggestion,
		StatusCode: status,
		Body:       body,
	}
}

// NewRateLimitError reports a 429 response.
func NewRateLimitError(retryAfter string, body any, opts ...Option) *Error {
	msg, suggestion := getMessenger(opts).RateLimitedMessage(retryAfter)
	return &Error{
		Kind:       KindAPI,
		Message:    msg,
		Suggestion: suggestion,
		StatusCode: 429,
		Body:       body,
	}
}

// NewMalformedResponse reports a 2xx response whose body could not be decoded.
func NewMalformedResponse(status int, err error, opts ...Option) *Error {
	msg, suggestion := getMessenger(opts).MalformedResponseMessage(status)
	e := &Error{
		Kind:       KindUnexpected,
		Message:    msg,
		Suggestion: suggestion,
		StatusCode: status,
		Err:        err,
	}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// WrapTransport classifies an error returned before any HTTP response was
// read. err must be non-nil.
func WrapTransport(err error, serverURL string, opts ...Option) *Error {
	messenger := getMessenger(opts)
	e := &Error{Kind: KindNetwork, Err: err}

	switch {
	case errors.Is(err, context.Canceled):
		e.Kind = KindUnexpected
		e.Message = "Request canceled."
	case isTimeout(err):
		e.Message, e.Suggestion = messenger.TimeoutErrorMessage(serverURL)
	case isTLS(err):
		e.Message, e.Suggestion = messenger.TLSErrorMessage(serverURL)
		e.Details = err.Error()
	case isConnection(err):
		e.Message, e.Suggestion = messenger.ConnectionErrorMessage(serverURL)
	default:
		e.Message = "Network error calling EmailBison"
		e.Details = err.Error()
	}
	return e
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func isTLS(err error) bool {
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var recordHeader tls.RecordHeaderError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostname) || errors.As(err, &recordHeader) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "certificate") || strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509")
}

func isConnection(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp")
}
