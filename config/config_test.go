package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

func required() Layer {
	return Layer{
		BaseURL:  Value("https://dedi.emailbison.com"),
		APIToken: Value("1|token"),
	}
}

func TestResolve_Defaults(t *testing.T) {
	s, err := Resolve(Sources{Flags: required(), Defaults: DefaultLayer()})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if s.TimeoutSeconds != 20 {
		t.Errorf("TimeoutSeconds = %v, want 20", s.TimeoutSeconds)
	}
	if s.Retries != 2 {
		t.Errorf("Retries = %d, want 2", s.Retries)
	}
	if s.CampaignsPath != "/api/campaigns" {
		t.Errorf("CampaignsPath = %q", s.CampaignsPath)
	}
	if s.CampaignsV11Path != "/api/campaigns/v1.1" {
		t.Errorf("CampaignsV11Path = %q", s.CampaignsV11Path)
	}
	if s.SenderEmailsPath != "/api/sender-emails" {
		t.Errorf("SenderEmailsPath = %q", s.SenderEmailsPath)
	}
	if s.Attempts() != 3 {
		t.Errorf("Attempts() = %d, want 3", s.Attempts())
	}
}

func TestResolve_Precedence(t *testing.T) {
	tests := []struct {
		name string
		src  Sources
		want string
	}{
		{
			name: "flag beats everything",
			src: Sources{
				Flags:    Layer{Retries: Value("7")},
				Env:      Layer{Retries: Value("6")},
				File:     Layer{Retries: Value("5")},
				Defaults: Layer{Retries: Value("4")},
			},
			want: "7",
		},
		{
			name: "env beats file",
			src: Sources{
				Env:      Layer{Retries: Value("6")},
				File:     Layer{Retries: Value("5")},
				Defaults: Layer{Retries: Value("4")},
			},
			want: "6",
		},
		{
			name: "file beats default",
			src: Sources{
				File:     Layer{Retries: Value("5")},
				Defaults: Layer{Retries: Value("4")},
			},
			want: "5",
		},
		{
			name: "empty flag is undefined",
			src: Sources{
				Flags: Layer{Retries: Value("")},
				Env:   Layer{Retries: Value("6")},
			},
			want: "6",
		},
		{
			name: "nothing set falls back to built-in",
			src:  Sources{},
			want: "2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.src.Flags.BaseURL = Value("https://x.test")
			tt.src.Flags.APIToken = Value("tok")

			s, err := Resolve(tt.src)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if got := fmt.Sprint(s.Retries); got != tt.want {
				t.Errorf("Retries = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolve_IndependentPerOption(t *testing.T) {
	src := Sources{
		Env:      Layer{BaseURL: Value("https://env.test"), APIToken: Value("tok")},
		File:     Layer{BaseURL: Value("https://file.test"), TimeoutSeconds: Value("45")},
		Defaults: DefaultLayer(),
	}

	s, err := Resolve(src)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if s.BaseURL != "https://env.test" {
		t.Errorf("BaseURL = %q, want env value", s.BaseURL)
	}
	if s.TimeoutSeconds != 45 {
		t.Errorf("TimeoutSeconds = %v, want file value 45", s.TimeoutSeconds)
	}

	sources := Explain(src)
	want := map[Key]Source{
		KeyBaseURL:          SourceEnv,
		KeyAPIToken:         SourceEnv,
		KeyTimeoutSeconds:   SourceFile,
		KeyRetries:          SourceDefault,
		KeyCampaignsPath:    SourceDefault,
		KeyCampaignsV11Path: SourceDefault,
		KeySenderEmailsPath: SourceDefault,
	}
	if diff := cmp.Diff(want, sources); diff != "" {
		t.Errorf("Explain() mismatch (-want +got):\n%s", diff)
	}

	if v, source, ok := src.Lookup(KeyTimeoutSeconds); !ok || v != "45" || source != SourceFile {
		t.Errorf("Lookup(timeout_seconds) = %q, %q, %v", v, source, ok)
	}
	if _, _, ok := src.Lookup(KeyDefaultTimezone); ok {
		t.Error("Lookup(default_timezone) should be undefined")
	}
}

func TestResolve_EndToEnd(t *testing.T) {
	src := Sources{
		Flags:    Layer{BaseURL: Value("https://x.test/")},
		Env:      Layer{APIToken: Value("abcd1234|secret")},
		File:     Layer{TimeoutSeconds: Value("30")},
		Defaults: DefaultLayer(),
	}

	got, err := Resolve(src)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := Settings{
		BaseURL:          "https://x.test",
		APIToken:         Secret("abcd1234|secret"),
		TimeoutSeconds:   30,
		Retries:          2,
		CampaignsPath:    "/api/campaigns",
		CampaignsV11Path: "/api/campaigns/v1.1",
		SenderEmailsPath: "/api/sender-emails",
	}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
	if got.Timeout().Seconds() != 30 {
		t.Errorf("Timeout() = %v", got.Timeout())
	}
}

func TestResolve_Idempotent(t *testing.T) {
	src := Sources{
		Flags:    required(),
		File:     Layer{DefaultTimezone: Value("America/New_York")},
		Defaults: DefaultLayer(),
	}

	first, err := Resolve(src)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	second, err := Resolve(src)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if first != second {
		t.Errorf("Resolve() not idempotent:\n%s", cmp.Diff(first, second))
	}
}

func TestResolve_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		layer      Layer
		wantOption string
		wantSubstr string
	}{
		{
			name:       "missing base_url",
			layer:      Layer{APIToken: Value("tok")},
			wantOption: "base_url",
			wantSubstr: "EMAILBISON_BASE_URL",
		},
		{
			name:       "missing api_token",
			layer:      Layer{BaseURL: Value("https://x.test")},
			wantOption: "api_token",
			wantSubstr: "EMAILBISON_API_TOKEN",
		},
		{
			name:       "relative base_url",
			layer:      Layer{BaseURL: Value("x.test/api"), APIToken: Value("tok")},
			wantOption: "base_url",
			wantSubstr: "absolute",
		},
		{
			name:       "ftp base_url",
			layer:      Layer{BaseURL: Value("ftp://x.test"), APIToken: Value("tok")},
			wantOption: "base_url",
			wantSubstr: "absolute",
		},
		{
			name:       "non-numeric timeout",
			layer:      Layer{TimeoutSeconds: Value("soon")},
			wantOption: "timeout_seconds",
			wantSubstr: "must be a number",
		},
		{
			name:       "zero timeout",
			layer:      Layer{TimeoutSeconds: Value("0")},
			wantOption: "timeout_seconds",
			wantSubstr: "> 0",
		},
		{
			name:       "negative timeout",
			layer:      Layer{TimeoutSeconds: Value("-1.5")},
			wantOption: "timeout_seconds",
			wantSubstr: "> 0",
		},
		{
			name:       "fractional retries",
			layer:      Layer{Retries: Value("1.5")},
			wantOption: "retries",
			wantSubstr: "integer",
		},
		{
			name:       "negative retries",
			layer:      Layer{Retries: Value("-1")},
			wantOption: "retries",
			wantSubstr: ">= 0",
		},
		{
			name:       "relative campaigns path",
			layer:      Layer{CampaignsPath: Value("api/campaigns")},
			wantOption: "campaigns_path",
			wantSubstr: "must start with",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := tt.layer
			if _, ok := flags.Get(KeyBaseURL); !ok && tt.wantOption != "base_url" {
				flags.BaseURL = Value("https://x.test")
			}
			if _, ok := flags.Get(KeyAPIToken); !ok && tt.wantOption != "api_token" {
				flags.APIToken = Value("tok")
			}

			_, err := Resolve(Sources{Flags: flags, Defaults: DefaultLayer()})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := bisonerrors.ExitCode(err); got != 2 {
				t.Errorf("ExitCode() = %d, want 2", got)
			}
			e := bisonerrors.Classify(err)
			if e.Option != tt.wantOption {
				t.Errorf("Option = %q, want %q", e.Option, tt.wantOption)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("expected %q in %q", tt.wantSubstr, err.Error())
			}
		})
	}
}

func TestEnvLayer(t *testing.T) {
	env := map[string]string{
		"EMAILBISON_BASE_URL":           "https://env.test",
		"EMAILBISON_API_TOKEN":          "",
		"EMAILBISON_RETRIES":            "4",
		"EMAILBISON_CAMPAIGNS_PATH":     "/v2/campaigns",
		"EMAILBISON_SENDER_EMAILS_PATH": "/ignored",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	layer := EnvLayer(DefaultEnvPrefix, lookup)

	if v, _ := layer.Get(KeyBaseURL); v != "https://env.test" {
		t.Errorf("BaseURL = %q", v)
	}
	if _, ok := layer.Get(KeyAPIToken); ok {
		t.Error("empty env var should leave api_token undefined")
	}
	if v, _ := layer.Get(KeyRetries); v != "4" {
		t.Errorf("Retries = %q", v)
	}
	if v, _ := layer.Get(KeyCampaignsPath); v != "/v2/campaigns" {
		t.Errorf("CampaignsPath = %q", v)
	}
	if _, ok := layer.Get(KeySenderEmailsPath); ok {
		t.Error("sender_emails_path is file-only")
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", ""},
		{"abc", "********"},
		{"abcd", "********"},
		{"abcd1234|secret", "abcd…********"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			if got := Mask(tt.token); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSecret_NeverRendersRaw(t *testing.T) {
	const raw = "abcd1234|secret"
	s := Settings{BaseURL: "https://x.test", APIToken: Secret(raw)}

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	logger.Info("settings", "token", s.APIToken, "settings", s)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	renderings := map[string]string{
		"%s":   fmt.Sprintf("%s", s.APIToken),
		"%v":   fmt.Sprintf("%v", s),
		"%+v":  fmt.Sprintf("%+v", s),
		"%#v":  fmt.Sprintf("%#v", s.APIToken),
		"json": string(data),
		"slog": logBuf.String(),
	}
	for name, out := range renderings {
		if strings.Contains(out, raw) || strings.Contains(out, "1234|secret") {
			t.Errorf("%s rendering leaked token: %s", name, out)
		}
	}

	if s.APIToken.Reveal() != raw {
		t.Error("Reveal() should return the raw token")
	}
}

func TestSettings_Location(t *testing.T) {
	s := Settings{}
	if loc, err := s.Location(); err != nil || loc == nil {
		t.Errorf("Location() = %v, %v", loc, err)
	}

	s.DefaultTimezone = "Not/AZone"
	if _, err := s.Location(); !bisonerrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	preferred := filepath.Join(dir, "emailbison", "config.toml")
	legacy := filepath.Join(dir, ".emailbison.toml")

	t.Run("absent", func(t *testing.T) {
		layer, path, err := LoadFile(preferred, legacy)
		if err != nil {
			t.Fatalf("LoadFile() error: %v", err)
		}
		if path != "" || !layer.IsEmpty() {
			t.Errorf("expected empty layer, got %q %+v", path, layer)
		}
	})

	t.Run("legacy fallback", func(t *testing.T) {
		writeFile(t, legacy, "base_url = \"https://legacy.test\"\nretries = 5\n")

		layer, path, err := LoadFile(preferred, legacy)
		if err != nil {
			t.Fatalf("LoadFile() error: %v", err)
		}
		if path != legacy {
			t.Errorf("path = %q, want legacy", path)
		}
		if v, _ := layer.Get(KeyRetries); v != "5" {
			t.Errorf("Retries = %q, want 5", v)
		}
	})

	t.Run("preferred wins", func(t *testing.T) {
		writeFile(t, preferred, "timeout_seconds = 12.5\n")

		layer, path, err := LoadFile(preferred, legacy)
		if err != nil {
			t.Fatalf("LoadFile() error: %v", err)
		}
		if path != preferred {
			t.Errorf("path = %q, want preferred", path)
		}
		if v, _ := layer.Get(KeyTimeoutSeconds); v != "12.5" {
			t.Errorf("TimeoutSeconds = %q", v)
		}
		if _, ok := layer.Get(KeyBaseURL); ok {
			t.Error("legacy file must not be merged once preferred exists")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.toml")
		writeFile(t, bad, "base_url = \n[[[")

		_, _, err := LoadFile(bad)
		if !bisonerrors.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if !strings.Contains(err.Error(), bad) {
			t.Errorf("expected path in error, got %q", err.Error())
		}
	})

	t.Run("unsupported value", func(t *testing.T) {
		arr := filepath.Join(dir, "arr.toml")
		writeFile(t, arr, "retries = [1, 2]\n")

		_, _, err := LoadFile(arr)
		if !bisonerrors.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestResolver_Resolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "base_url = \"https://file.test\"\napi_token = \"file-token\"\ncolour = \"blue\"\n")

	env := map[string]string{"EMAILBISON_API_TOKEN": "env-token"}
	var warnings bytes.Buffer
	resolver := NewResolver(ResolverConfig{
		ConfigPaths: []string{path},
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
		ErrWriter: &warnings,
	})

	s, err := resolver.Resolve(Layer{Retries: Value("0")})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if s.BaseURL != "https://file.test" {
		t.Errorf("BaseURL = %q", s.BaseURL)
	}
	if s.APIToken.Reveal() != "env-token" {
		t.Errorf("APIToken should come from env, got %q", s.APIToken)
	}
	if s.Retries != 0 || s.Attempts() != 1 {
		t.Errorf("Retries = %d, want 0", s.Retries)
	}
	if resolver.ConfigPath() != path {
		t.Errorf("ConfigPath() = %q", resolver.ConfigPath())
	}
	if len(resolver.Warnings) != 1 || !strings.Contains(warnings.String(), "colour") {
		t.Errorf("expected unknown key warning, got %v", resolver.Warnings)
	}
}

func TestResolver_KeysAreCaseSensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "BASE_URL = \"https://upper.test\"\nApi_Token = \"mixed\"\nretries = 1\n")

	resolver := NewResolver(ResolverConfig{
		ConfigPaths: []string{path},
		LookupEnv:   func(string) (string, bool) { return "", false },
	})
	src, err := resolver.Sources(Layer{})
	if err != nil {
		t.Fatalf("Sources() error: %v", err)
	}

	if _, ok := src.File.Get(KeyBaseURL); ok {
		t.Error("BASE_URL must not define base_url")
	}
	if _, ok := src.File.Get(KeyAPIToken); ok {
		t.Error("Api_Token must not define api_token")
	}
	if v, _ := src.File.Get(KeyRetries); v != "1" {
		t.Errorf("retries = %q, want 1", v)
	}
	if diff := cmp.Diff([]string{`unknown key "Api_Token" in ` + path, `unknown key "BASE_URL" in ` + path}, resolver.Warnings); diff != "" {
		t.Errorf("Warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestResolver_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope.toml")

	t.Run("missing explicit file is an error", func(t *testing.T) {
		resolver := NewResolver(ResolverConfig{
			ExplicitPath: missing,
			LookupEnv:    func(string) (string, bool) { return "", false },
		})
		_, err := resolver.Resolve(required())
		if got := bisonerrors.ExitCode(err); got != 2 {
			t.Errorf("ExitCode() = %d, want 2 (err: %v)", got, err)
		}
	})

	t.Run("config env var selects file", func(t *testing.T) {
		path := filepath.Join(dir, "alt.toml")
		writeFile(t, path, "retries = 9\n")

		resolver := NewResolver(ResolverConfig{
			ConfigPaths: []string{missing},
			LookupEnv: func(k string) (string, bool) {
				if k == "EMAILBISON_CONFIG" {
					return path, true
				}
				return "", false
			},
		})
		s, err := resolver.Resolve(required())
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if s.Retries != 9 {
			t.Errorf("Retries = %d, want 9", s.Retries)
		}
		if got := resolver.CandidatePaths(); len(got) != 1 || got[0] != path {
			t.Errorf("CandidatePaths() = %v", got)
		}
	})
}
