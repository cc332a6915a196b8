package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnvOverridesWithoutConfigFile(t *testing.T) {
	t.Setenv("AUTHGATE_DATABASE_DSN", "postgres://authgate:pw@db.internal:5432/authgate")
	t.Setenv("AUTHGATE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("AUTHGATE_SERVER_PORT", "8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.DSN != "postgres://authgate:pw@db.internal:5432/authgate" {
		t.Fatalf("database dsn not bound from env: %q", cfg.Database.DSN)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Fatalf("redis addr not bound from env: %q", cfg.Redis.Addr)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("server port not bound from env: %q", cfg.Server.Port)
	}
	// Unset keys keep their defaults.
	if cfg.Auth.Issuer != "authgate" {
		t.Fatalf("issuer default lost: %q", cfg.Auth.Issuer)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "jwt_private.pem")
	pub := filepath.Join(dir, "jwt_public.pem")
	for _, name := range []string{priv, pub} {
		if err := os.WriteFile(name, []byte("pem"), 0o600); err != nil {
			t.Fatalf("write key file: %v", err)
		}
	}

	valid := Config{
		Server: ServerConfig{Port: "3000"},
		Auth: AuthConfig{
			PrivateKeyPath: priv,
			PublicKeyPath:  pub,
			Issuer:         "authgate",
			Audience:       "authgate-clients",
			AccessTTL:      "15m",
			RefreshTTL:     "168h",
		},
		RequestLog: RequestLogConfig{Capacity: 5000},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	missingKey := valid
	missingKey.Auth.PrivateKeyPath = filepath.Join(dir, "nope.pem")
	if err := missingKey.Validate(); err == nil {
		t.Fatal("missing key file must fail validation")
	}

	badTTL := valid
	badTTL.Auth.AccessTTL = "soon"
	if err := badTTL.Validate(); err == nil {
		t.Fatal("unparseable ttl must fail validation")
	}

	zeroCap := valid
	zeroCap.RequestLog.Capacity = 0
	if err := zeroCap.Validate(); err == nil {
		t.Fatal("zero log capacity must fail validation")
	}
}
