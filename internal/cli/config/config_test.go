package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}

	// Check defaults
	if cfg.NullMarker != "" {
		t.Errorf("expected empty null marker, got %q", cfg.NullMarker)
	}

	if cfg.DateLayout != "2006-01-02" {
		t.Errorf("expected default date layout, got %s", cfg.DateLayout)
	}

	if cfg.Server.Address != "localhost:8080" {
		t.Errorf("expected default address 'localhost:8080', got %s", cfg.Server.Address)
	}

	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("expected default request timeout 30s, got %s", cfg.Server.RequestTimeout)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected default driver 'sqlite3', got %s", cfg.Database.Driver)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("expected default log level 'warn', got %s", cfg.Log.Level)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	// Create temporary directory with config file
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	// Write config file
	configContent := `
schema: people.yml
ignore_case: true
null_marker: "NULL"
date_layout: 02/01/2006
log:
  level: debug
  format: json
server:
  address: 0.0.0.0:9090
  request_timeout: 5s
  allowed_origins:
    - https://app.example.com
  rate_limit:
    requests: 60
    window: 30s
    redis_url: redis://localhost:6379/1
  auth:
    jwt_secret: s3cret
    api_keys:
      - "$2a$10$abcdefghijklmnopqrstuu"
database:
  driver: pgx
  dsn: postgres://localhost/testdb
  table: people
`
	os.WriteFile("rowfilter.yml", []byte(configContent), 0644)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if !cfg.IgnoreCase {
		t.Error("expected ignore_case to be true")
	}

	if cfg.NullMarker != "NULL" {
		t.Errorf("expected null marker 'NULL', got %s", cfg.NullMarker)
	}

	if cfg.DateLayout != "02/01/2006" {
		t.Errorf("expected date layout '02/01/2006', got %s", cfg.DateLayout)
	}

	if cfg.Server.Address != "0.0.0.0:9090" {
		t.Errorf("expected address '0.0.0.0:9090', got %s", cfg.Server.Address)
	}

	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("expected request timeout 5s, got %s", cfg.Server.RequestTimeout)
	}

	if cfg.Server.RateLimit.Requests != 60 || cfg.Server.RateLimit.Window != 30*time.Second {
		t.Errorf("unexpected rate limit config: %+v", cfg.Server.RateLimit)
	}

	if cfg.Server.RateLimit.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("expected redis url, got %s", cfg.Server.RateLimit.RedisURL)
	}

	if cfg.Server.Auth.JWTSecret != "s3cret" || len(cfg.Server.Auth.APIKeys) != 1 {
		t.Errorf("unexpected auth config: %+v", cfg.Server.Auth)
	}

	if cfg.Server.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("expected default token ttl 24h, got %s", cfg.Server.Auth.TokenTTL)
	}

	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("expected one allowed origin, got %v", cfg.Server.AllowedOrigins)
	}

	if cfg.Database.Driver != "pgx" || cfg.Database.Table != "people" {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}

	if cfg.Log.Format != "json" {
		t.Errorf("expected log format 'json', got %s", cfg.Log.Format)
	}

	// Relative schema paths resolve against the config file
	if filepath.Base(cfg.Schema) != "people.yml" || !filepath.IsAbs(cfg.Schema) {
		t.Errorf("unexpected schema path %s", cfg.Schema)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "custom.yaml")
	os.WriteFile(path, []byte("schema: s.yml\n"), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Schema != filepath.Join(tmpDir, "s.yml") {
		t.Errorf("expected schema next to config file, got %s", cfg.Schema)
	}

	if _, err := Load(filepath.Join(tmpDir, "missing.yml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	t.Setenv("ROWFILTER_NULL_MARKER", "-")
	t.Setenv("ROWFILTER_SERVER_ADDRESS", ":7000")
	t.Setenv("ROWFILTER_SERVER_AUTH_JWT_SECRET", "from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.NullMarker != "-" {
		t.Errorf("expected null marker from env, got %q", cfg.NullMarker)
	}

	if cfg.Server.Address != ":7000" {
		t.Errorf("expected address from env, got %s", cfg.Server.Address)
	}

	if cfg.Server.Auth.JWTSecret != "from-env" {
		t.Errorf("expected jwt secret from env, got %q", cfg.Server.Auth.JWTSecret)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "valid defaults",
			content: "ignore_case: false\n",
			wantErr: false,
		},
		{
			name:    "empty date layout",
			content: "date_layout: \" \"\n",
			wantErr: true,
		},
		{
			name:    "unknown log format",
			content: "log:\n  format: xml\n",
			wantErr: true,
		},
		{
			name:    "unknown driver",
			content: "database:\n  driver: oracle\n",
			wantErr: true,
		},
		{
			name:    "negative rows",
			content: "server:\n  max_rows: -1\n",
			wantErr: true,
		},
		{
			name:    "negative rate limit",
			content: "server:\n  rate_limit:\n    requests: -5\n",
			wantErr: true,
		},
		{
			name:    "rate limit without window",
			content: "server:\n  rate_limit:\n    requests: 5\n    window: 0s\n",
			wantErr: true,
		},
		{
			name:    "rate limit with default window",
			content: "server:\n  rate_limit:\n    requests: 5\n",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rowfilter.yml")
			os.WriteFile(path, []byte(tt.content), 0644)

			_, err := Load(path)
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}

func TestFindSchema(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg := &Config{}
	if _, err := cfg.FindSchema(); err == nil {
		t.Error("expected error without a schema")
	}

	os.WriteFile("schema.yml", []byte("columns: []\n"), 0644)
	path, err := cfg.FindSchema()
	if err != nil || path != "schema.yml" {
		t.Errorf("expected schema.yml, got %q (%v)", path, err)
	}

	cfg.Schema = "other.yml"
	if path, _ := cfg.FindSchema(); path != "other.yml" {
		t.Errorf("expected configured schema, got %s", path)
	}
}
