// Package errors defines the failure taxonomy shared by every emailbison
// component and maps it onto process exit codes.
//
// There are exactly five kinds, in order:
//   - KindValidation: bad configuration or command input (exit 2)
//   - KindAuth: the API rejected the credentials, 401/403 (exit 3)
//   - KindAPI: any other HTTP failure from the API (exit 3)
//   - KindNetwork: no usable HTTP response, e.g. refused or timed out (exit 4)
//   - KindUnexpected: everything else (exit 5)
//
// The component that first detects a failure classifies it. Later layers
// only render or forward it:
//
//	if err := run(); err != nil {
//	    fmt.Fprintln(os.Stderr, errors.Sanitize(err.Error(), token))
//	    os.Exit(errors.ExitCode(err))
//	}
//
// Kinds can be checked with the predicates or with the standard library:
//
//	if errors.IsAuth(err) { ... }
//	if stderrors.Is(err, errors.ErrNetwork) { ... }
package errors
