// Package config resolves emailbison settings from layered sources.
//
// Four sources are consulted per option, highest precedence first:
//  1. Command-line flags
//  2. Environment variables (EMAILBISON_*)
//  3. Config file (first existing of ~/.config/emailbison/config.toml and ~/.emailbison.toml)
//  4. Built-in defaults
//
// The first source that defines a non-empty value for an option wins and
// later sources are never consulted for it. Each option is resolved
// independently, so base_url may come from the environment while
// timeout_seconds comes from the file.
//
// # Basic Usage
//
//	resolver := config.NewResolver(config.ResolverConfig{})
//	settings, err := resolver.Resolve(config.Layer{
//	    BaseURL: config.Value("https://dedi.emailbison.com"),
//	})
//	if err != nil {
//	    // err is an *errors.Error of KindValidation
//	}
//
// Resolution itself is pure. Resolve(Sources) only looks at the layers it
// is given; Resolver is the thin shell that reads the process environment
// and the config file into layers first.
//
// # Config File
//
// The file is TOML with flat keys that mirror the settings:
//
//	base_url = "https://dedi.emailbison.com"
//	api_token = "1|abcdef"
//	timeout_seconds = 30
//	retries = 2
//
// A missing file contributes nothing. A file that fails to parse is a
// validation error.
package config
