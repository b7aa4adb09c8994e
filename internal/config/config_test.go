package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := Defaults()

	testCases := []struct {
		name        string
		mutate      func(c *Config)
		wantMessage string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "trimmed port", mutate: func(c *Config) { c.Server.Port = " 3000 " }},
		{
			name:        "missing server port",
			mutate:      func(c *Config) { c.Server.Port = "" },
			wantMessage: "server.port is required",
		},
		{
			name:        "invalid server port format",
			mutate:      func(c *Config) { c.Server.Port = "abc" },
			wantMessage: "server.port must be an integer between 1 and 65535",
		},
		{
			name:        "server port out of range",
			mutate:      func(c *Config) { c.Server.Port = "70000" },
			wantMessage: "server.port must be an integer between 1 and 65535",
		},
		{
			name:        "missing api base url",
			mutate:      func(c *Config) { c.API.BaseURL = " " },
			wantMessage: "api.base_url is required",
		},
		{
			name:        "non positive api timeout",
			mutate:      func(c *Config) { c.API.Timeout = 0 },
			wantMessage: "api.timeout must be positive",
		},
		{
			name:        "missing database url",
			mutate:      func(c *Config) { c.Datasource.URL = "" },
			wantMessage: "database.url is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := valid
			tc.mutate(&conf)

			err := Validate(conf)
			if tc.wantMessage == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tc.wantMessage)
			}
			if err.Error() != tc.wantMessage {
				t.Fatalf("expected error %q, got %q", tc.wantMessage, err.Error())
			}
		})
	}
}

func TestLoad_WritesDefaultsWhenFileIsMissing(t *testing.T) {
	originalConf := Conf
	defer func() { Conf = originalConf }()

	dir := t.TempDir()
	if err := Load(dir, "development"); err != nil {
		t.Fatalf("load config: %v", err)
	}

	path := filepath.Join(dir, "config.dev.yaml")
	if FilePath() != path {
		t.Fatalf("expected config path %q, got %q", path, FilePath())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config file to be written: %v", err)
	}
	if Conf.Server.Port != DefaultPort {
		t.Fatalf("expected port %q, got %q", DefaultPort, Conf.Server.Port)
	}
	if Conf.API.Timeout != DefaultAPITimeout {
		t.Fatalf("expected api timeout %v, got %v", DefaultAPITimeout, Conf.API.Timeout)
	}

	// 저장된 기본 파일을 다시 읽을 수 있어야 한다
	if err := Load(dir, "development"); err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if Conf.Server.AppTitle != DefaultAppTitle {
		t.Fatalf("expected app title %q, got %q", DefaultAppTitle, Conf.Server.AppTitle)
	}
}

func TestLoad_ReadsProductionFile(t *testing.T) {
	originalConf := Conf
	defer func() { Conf = originalConf }()

	dir := t.TempDir()
	content := []byte(`server:
  port: "8080"
  app_title: Portal
  cookie_secure: true
api:
  base_url: https://auth.example.com/api
  timeout: 5s
database:
  url: /var/lib/portal/portal.db
`)
	if err := os.WriteFile(filepath.Join(dir, "config.prod.yaml"), content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := Load(dir, "production"); err != nil {
		t.Fatalf("load config: %v", err)
	}

	if Conf.Server.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", Conf.Server.Port)
	}
	if !Conf.Server.CookieSecure {
		t.Fatal("expected cookie_secure=true")
	}
	if Conf.API.Timeout != 5*time.Second {
		t.Fatalf("expected timeout 5s, got %v", Conf.API.Timeout)
	}
	if Conf.Server.SessionTTL != DefaultSessionTTL {
		t.Fatalf("expected default session ttl, got %v", Conf.Server.SessionTTL)
	}
	if Conf.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %q", Conf.Log.Level)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	originalConf := Conf
	defer func() { Conf = originalConf }()

	t.Setenv("PORTAL_SERVER_PORT", "4000")
	t.Setenv("PORTAL_API_BASE_URL", "http://upstream:9000/api")

	if err := Load(t.TempDir(), "development"); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if Conf.Server.Port != "4000" {
		t.Fatalf("expected port 4000, got %q", Conf.Server.Port)
	}
	if Conf.API.BaseURL != "http://upstream:9000/api" {
		t.Fatalf("expected env base url, got %q", Conf.API.BaseURL)
	}
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	originalConf := Conf
	defer func() { Conf = originalConf }()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.dev.yaml"), []byte("server:\n  port: \"abc\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := Load(dir, "development"); err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if Conf.Server.Port == "abc" {
		t.Fatal("expected invalid config not to replace Conf")
	}
}
