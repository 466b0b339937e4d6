package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// AppName names the per-user config directory.
const AppName = "emailbison"

// DefaultConfigPaths returns the preferred config file followed by the
// legacy dotfile in the home directory.
func DefaultConfigPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, AppName, "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".emailbison.toml"))
	}
	return paths
}

// LoadFile reads the first existing file among paths into a layer and
// returns the path it read. No existing file yields an empty layer and "".
func LoadFile(paths ...string) (Layer, string, error) {
	path, ok, err := firstExisting(paths)
	if err != nil || !ok {
		return Layer{}, "", err
	}
	f, err := readFile(path)
	if err != nil {
		return Layer{}, "", err
	}
	return f.layer, f.path, nil
}

type fileLayer struct {
	path    string
	layer   Layer
	unknown []string
}

func firstExisting(paths []string) (string, bool, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", false, fileError(p, "cannot read config file", err)
		}
		if info.IsDir() {
			return "", false, fileError(p, "config path is a directory", nil)
		}
		return p, true, nil
	}
	return "", false, nil
}

func readFile(path string) (fileLayer, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileLayer{}, fileError(path, "config file not found", err)
		}
		return fileLayer{}, fileError(path, "cannot read config file", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fileLayer{}, fileError(path, "cannot read config file", err)
	}
	// Keys are case-sensitive: BASE_URL is not base_url.
	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return fileLayer{}, fileError(path, "failed to parse config TOML", err)
	}

	f := fileLayer{path: path}
	for name := range doc {
		if !IsKey(name) {
			f.unknown = append(f.unknown, name)
		}
	}
	sort.Strings(f.unknown)

	for _, key := range Keys() {
		val, ok := doc[string(key)]
		if !ok {
			continue
		}
		s, ok := toString(val)
		if !ok {
			return fileLayer{}, bisonerrors.Validationf(string(key), "unsupported value %v in %s", val, path)
		}
		if s != "" {
			f.layer.Set(key, s)
		}
	}
	return f, nil
}

func fileError(path, msg string, err error) *bisonerrors.Error {
	e := &bisonerrors.Error{
		Kind:       bisonerrors.KindValidation,
		Message:    fmt.Sprintf("%s: %s", msg, path),
		Suggestion: "Fix or remove the file, or point --config at a valid one.",
		Option:     "config",
		Err:        err,
	}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", val), true
	default:
		return "", false
	}
}
