package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, warnings, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.RPCTimeout != 10*time.Second {
		t.Fatalf("RPCTimeout = %v, want 10s", cfg.RPCTimeout)
	}
	if cfg.FrameMaxWidth != 960 {
		t.Fatalf("FrameMaxWidth = %d, want 960", cfg.FrameMaxWidth)
	}
	if cfg.NMSIoUThreshold != 0.35 {
		t.Fatalf("NMSIoUThreshold = %v, want 0.35", cfg.NMSIoUThreshold)
	}
	if cfg.RedisEnabled() || cfg.PubSubEnabled() {
		t.Fatal("redis and pubsub should be disabled by default")
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings for default DSN and CORS, got %v", warnings)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	if _, _, err := Load(); err == nil || !strings.Contains(err.Error(), "32") {
		t.Fatalf("expected length error, got %v", err)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, _, err := Load(); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestValidateThreshold(t *testing.T) {
	cases := []struct {
		threshold float64
		ok        bool
	}{
		{0.35, true},
		{1, true},
		{0, false},
		{1.5, false},
	}
	for _, tc := range cases {
		cfg := &Config{JWTSecret: testSecret, FrameMaxWidth: 960, NMSIoUThreshold: tc.threshold}
		err := cfg.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("threshold %v: err = %v, want ok=%v", tc.threshold, err, tc.ok)
		}
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSOrigins: " https://a.example , ,https://b.example"}
	if got := cfg.AllowedOrigins(); got != "https://a.example,https://b.example" {
		t.Fatalf("AllowedOrigins = %q", got)
	}
}

func TestPubSubEnabledNeedsProjectAndTopic(t *testing.T) {
	cfg := &Config{PubSubProjectID: "p"}
	if cfg.PubSubEnabled() {
		t.Fatal("topic missing, should be disabled")
	}
	cfg.PubSubTopic = "retail-events"
	if !cfg.PubSubEnabled() {
		t.Fatal("should be enabled")
	}
}
