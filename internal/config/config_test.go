package config

import (
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "mentor"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "mentor"
	c.Auth.JWTAudience = "mentor-api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_AppliesDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Calls.RoomEmptyTimeout != 10*time.Minute {
		t.Fatalf("expected 10m empty timeout, got %s", c.Calls.RoomEmptyTimeout)
	}
	if c.Calls.MaxParticipants != 10 {
		t.Fatalf("expected 10 participants, got %d", c.Calls.MaxParticipants)
	}
	if c.Calls.MaxDuration != 4*time.Hour {
		t.Fatalf("expected 4h max call duration, got %s", c.Calls.MaxDuration)
	}
	if c.AMQP.Exchange == "" {
		t.Fatalf("expected default exchange")
	}
	if c.Reconcile.StaleAfter != 2*time.Hour {
		t.Fatalf("expected 2h stale threshold, got %s", c.Reconcile.StaleAfter)
	}
}

func TestValidate_MaxDurationMustExceedEmptyTimeout(t *testing.T) {
	c := validLocal()
	c.Calls.RoomEmptyTimeout = time.Hour
	c.Calls.MaxDuration = 30 * time.Minute
	c.Reconcile.StaleAfter = 3 * time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when max call duration is below the empty timeout")
	}
}

func TestValidate_StaleAfterMustExceedEmptyTimeout(t *testing.T) {
	c := validLocal()
	c.Calls.RoomEmptyTimeout = time.Hour
	c.Reconcile.StaleAfter = 30 * time.Minute
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when stale threshold is below empty timeout")
	}
}

func TestLiveKitConfig_MissingListsNamesOnly(t *testing.T) {
	l := LiveKitConfig{APIKey: "key", URL: "wss://lk.example.com"}
	got := l.MissingForCalls()
	want := []string{"LIVEKIT_API_SECRET", "LIVEKIT_SIP_TRUNK_ID"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if m := (LiveKitConfig{APIKey: "k", APISecret: "s"}).MissingForWebhooks(); len(m) != 0 {
		t.Fatalf("expected webhook config complete, got %v", m)
	}
}

func TestLoad_ParsesEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "mentor")
	t.Setenv("DB_NAME", "mentor")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LIVEKIT_URL", "https://lk.example.com/")
	t.Setenv("CALL_ROOM_EMPTY_TIMEOUT", "5m")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.LiveKit.URL != "https://lk.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.LiveKit.URL)
	}
	if c.Calls.RoomEmptyTimeout != 5*time.Minute {
		t.Fatalf("expected 5m, got %s", c.Calls.RoomEmptyTimeout)
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "mentor")
	t.Setenv("DB_NAME", "mentor")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RECONCILE_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
