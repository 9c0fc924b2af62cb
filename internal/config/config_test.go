package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "planilla",
				Password: "secret",
				Name:     "planilla",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=planilla password=secret dbname=planilla sslmode=require",
		},
		{
			name: "pgx uses the same keyword form",
			cfg: DatabaseConfig{
				Driver:  "pgx",
				Host:    "db.example.com",
				Port:    5433,
				User:    "admin",
				Name:    "hr",
				SSLMode: "disable",
			},
			want: "host=db.example.com port=5433 user=admin password= dbname=hr sslmode=disable",
		},
		{
			name: "sqlite enables foreign keys",
			cfg:  DatabaseConfig{Driver: "sqlite", Path: "/var/lib/planilla.db"},
			want: "/var/lib/planilla.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "postgres",
			Host:   "localhost",
			Name:   "planilla",
			User:   "planilla",
		},
		Auth:    AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour, BcryptCost: 10},
		Records: RecordsConfig{MaxDepth: 3},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid minimal config", func(*Config) {}, ""},
		{"port 0", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port 70000", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "invalid database driver"},
		{"missing host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"missing name", func(c *Config) { c.Database.Name = "" }, "database.name"},
		{"missing user", func(c *Config) { c.Database.User = "" }, "database.user"},
		{"sqlite without path", func(c *Config) { c.Database.Driver = "sqlite" }, "database.path"},
		{"sqlite ignores host", func(c *Config) {
			c.Database = DatabaseConfig{Driver: "sqlite", Path: "x.db"}
		}, ""},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "token_ttl"},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 2 }, "bcrypt_cost"},
		{"negative depth", func(c *Config) { c.Records.MaxDepth = -1 }, "max_depth"},
		{"tls without cert", func(c *Config) {
			c.Security.TLS = TLSConfig{Enabled: true, KeyFile: "k"}
		}, "cert_file"},
		{"tls without key", func(c *Config) {
			c.Security.TLS = TLSConfig{Enabled: true, CertFile: "c"}
		}, "key_file"},
		{"webhook shipper without url", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "webhook"}}
		}, "webhook.url"},
		{"file shipper without path", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "file", File: &AuditFileConfig{}}}
		}, "file.path"},
		{"unknown shipper", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: true, Type: "syslog"}}
		}, "invalid audit shipper type"},
		{"disabled shipper is not validated", func(c *Config) {
			c.Audit.Shippers = []AuditShipperConfig{{Enabled: false, Type: "syslog"}}
		}, ""},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid logging level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "config-test-*.yaml")
	if err != nil {
		t.Fatal("CreateTemp:", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	if _, err := f.WriteString(content); err != nil {
		t.Fatal("WriteString:", err)
	}
	f.Close()
	return f.Name()
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  host: "testhost"
  port: 9999
database:
  driver: "sqlite"
  path: "/tmp/planilla-test.db"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
records:
  max_depth: 1
logging:
  level: "debug"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "testhost" || cfg.Server.Port != 9999 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "/tmp/planilla-test.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Records.MaxDepth != 1 {
		t.Errorf("Records.MaxDepth = %d, want 1", cfg.Records.MaxDepth)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	const content = `
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("default Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Auth.TokenTTL != 8*time.Hour {
		t.Errorf("default Auth.TokenTTL = %v, want 8h", cfg.Auth.TokenTTL)
	}
	if cfg.Records.MaxDepth != 3 {
		t.Errorf("default Records.MaxDepth = %d, want 3", cfg.Records.MaxDepth)
	}
	if cfg.Telemetry.Metrics.PrometheusPort != 9090 {
		t.Errorf("default PrometheusPort = %d, want 9090", cfg.Telemetry.Metrics.PrometheusPort)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PLN_SERVER_PORT", "7070")
	t.Setenv("PLN_DATABASE_DRIVER", "pgx")
	t.Setenv("PLN_AUTH_JWT_SECRET", testSecret+"-from-env")

	cfg, err := Load(writeTempConfig(t, "server:\n  port: 9999\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Database.Driver != "pgx" {
		t.Errorf("Database.Driver = %q, want pgx", cfg.Database.Driver)
	}
	if cfg.Auth.JWTSecret != testSecret+"-from-env" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASS", "mysecret")
	const content = `
database:
  password: "${TEST_DB_PASS}"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_MissingSecretFails(t *testing.T) {
	_, err := Load(writeTempConfig(t, "logging:\n  level: info\n"))
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("Load() error = %v, want jwt_secret error", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "server: [unclosed")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}
