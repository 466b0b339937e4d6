// Package bison wraps the EmailBison endpoints used by the CLI.
//
// API methods map one-to-one onto HTTP calls and return the client's
// Response untouched. CreateCampaign orchestrates several of them into the
// provisioning workflow (create, settings, schedule, sequence, sender
// emails, leads, optional start) and records every step it performed.
//
// Campaign specs are loaded from JSON or YAML with unknown fields rejected
// and are validated with go-playground/validator before any request is sent.
package bison
