package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// SaveConfig writes individual options to a config file.
type SaveConfig struct {
	// Path is the file to edit. Defaults to the first of DefaultConfigPaths.
	Path string
}

// TargetPath returns the file Set and Unset will edit.
func (c SaveConfig) TargetPath() string {
	if c.Path != "" {
		return c.Path
	}
	if paths := DefaultConfigPaths(); len(paths) > 0 {
		return paths[0]
	}
	return ""
}

// Set stores key = value, creating the file with 0600 permissions if needed.
func (c SaveConfig) Set(key, value string) error {
	if !IsKey(key) {
		return unknownKey(key)
	}
	parsed, err := parseValue(Key(key), value)
	if err != nil {
		return err
	}

	path := c.TargetPath()
	v, err := c.load(path)
	if err != nil {
		return err
	}
	v.Set(key, parsed)
	return write(v, path)
}

// Unset removes key from the file. A missing file is not an error.
func (c SaveConfig) Unset(key string) error {
	if !IsKey(key) {
		return unknownKey(key)
	}
	path := c.TargetPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	existing, err := c.load(path)
	if err != nil {
		return err
	}
	settings := existing.AllSettings()
	if _, ok := settings[key]; !ok {
		return nil
	}
	delete(settings, key)

	// viper has no delete, so rebuild from the remaining settings.
	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	return write(v, path)
}

func (c SaveConfig) load(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fileError(path, "failed to parse config TOML", err)
		}
	}
	return v, nil
}

func write(v *viper.Viper, path string) error {
	if path == "" {
		return bisonerrors.Validation("config", "no config path available")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fileError(path, "cannot create config directory", err)
	}
	v.SetConfigType("toml")
	v.SetConfigPermissions(0o600)
	if err := v.WriteConfigAs(path); err != nil {
		return fileError(path, "cannot write config file", err)
	}
	// WriteConfigAs only applies permissions on create.
	return os.Chmod(path, 0o600)
}

func unknownKey(key string) error {
	names := make([]string, 0, len(Keys()))
	for _, k := range Keys() {
		names = append(names, string(k))
	}
	e := bisonerrors.Validationf("config", "unknown config key: %s", key)
	e.Suggestion = "Valid keys: " + strings.Join(names, ", ")
	return e
}

// parseValue converts string values to the TOML type matching key.
func parseValue(key Key, value string) (any, error) {
	switch key {
	case KeyRetries:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, bisonerrors.Validation(string(key), "must be an integer >= 0")
		}
		return n, nil
	case KeyTimeoutSeconds:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || f <= 0 {
			return nil, bisonerrors.Validation(string(key), "must be a number > 0")
		}
		return f, nil
	}
	lower := strings.ToLower(value)
	if lower == "true" {
		return true, nil
	}
	if lower == "false" {
		return false, nil
	}
	return value, nil
}
