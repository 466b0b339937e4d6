// Package cli is the emailbison command tree.
//
// Run executes one invocation against injectable streams and environment
// and returns the process exit code:
//
//	0  success
//	2  validation or usage error
//	3  API or auth error
//	4  network error
//	5  unexpected error
//
// Global flags override environment variables, which override the config
// file, which overrides built-in defaults. Each option is resolved on its
// own.
package cli
