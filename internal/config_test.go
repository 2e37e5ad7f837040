package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestRemoteConfig_BadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "ftp://host/api", "http://"} {
		cfg := RemoteConfig{BaseURL: u}
		if err := cfg.Validate(); err == nil {
			t.Errorf("base_url %q should fail validation", u)
		}
	}
}

func TestNotesConfig_DailyRoot(t *testing.T) {
	ok := NotesConfig{DailyRootID: "journal"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid daily root rejected: %v", err)
	}
	empty := NotesConfig{}
	if err := empty.Validate(); err != nil {
		t.Errorf("empty daily root rejected: %v", err)
	}
	bad := NotesConfig{DailyRootID: "../etc"}
	if err := bad.Validate(); err == nil {
		t.Error("invalid daily root accepted")
	}
}

func TestNotesConfig_Settings(t *testing.T) {
	cfg := NotesConfig{DailyRootID: "journal", ExplicitSave: true}
	s := cfg.Settings()
	if s.DailyRootID != "journal" || !s.ExplicitSave || s.LastVisit != "" {
		t.Errorf("settings = %+v", s)
	}
}

func TestCacheConfig_PathRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Cache.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty cache path should fail")
	}
}
