// Package output renders command results and errors.
//
// Results go to stdout in one of three formats: human tables and key/value
// listings, indented JSON, or YAML. Messages and errors go to stderr so the
// data stream can be piped:
//
//	emailbison --json campaign list | jq '.data[].id'
//
// Error reports never contain the API token; callers pass the secrets to
// redact and every rendered string is sanitized.
package output
