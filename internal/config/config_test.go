package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test_password")
	os.Setenv("JWT_SECRET_KEY", "this_is_a_test_secret_key_with_32_chars_minimum")
	defer func() {
		os.Unsetenv("DB_PASSWORD")
		os.Unsetenv("JWT_SECRET_KEY")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.DBPassword != "test_password" {
		t.Errorf("DBPassword = %q, want %q", cfg.DBPassword, "test_password")
	}
	if cfg.PurchaseEarnRate != 4 {
		t.Errorf("PurchaseEarnRate = %d, want 4", cfg.PurchaseEarnRate)
	}
	if cfg.TokenTTLHours != 168 {
		t.Errorf("TokenTTLHours = %d, want 168", cfg.TokenTTLHours)
	}
	if cfg.ResetCooldownSeconds != 60 {
		t.Errorf("ResetCooldownSeconds = %d, want 60", cfg.ResetCooldownSeconds)
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name: "Missing DB_PASSWORD",
			envVars: map[string]string{
				"JWT_SECRET_KEY": "this_is_a_test_secret_key_with_32_chars_minimum",
			},
		},
		{
			name: "Missing JWT_SECRET_KEY",
			envVars: map[string]string{
				"DB_PASSWORD": "password",
			},
		},
		{
			name: "Short JWT_SECRET_KEY",
			envVars: map[string]string{
				"DB_PASSWORD":    "password",
				"JWT_SECRET_KEY": "too_short",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer os.Clearenv()

			if _, err := LoadConfig(); err == nil {
				t.Error("LoadConfig() expected error, got nil")
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     "5432",
		DBUser:     "loyalty",
		DBPassword: "secret",
		DBName:     "loyalty_db",
		DBSSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=loyalty password=secret dbname=loyalty_db sslmode=disable"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{TokenTTLHours: 168, ResetCooldownSeconds: 60}

	if got := cfg.GetTokenTTL(); got != 168*time.Hour {
		t.Errorf("GetTokenTTL() = %v, want %v", got, 168*time.Hour)
	}
	if got := cfg.GetResetCooldown(); got != time.Minute {
		t.Errorf("GetResetCooldown() = %v, want %v", got, time.Minute)
	}
}

func TestValidateProductionSecurity(t *testing.T) {
	cfg := &Config{
		AppEnv:      "production",
		DBSSLMode:   "disable",
		JWTSecret:   "this_is_a_test_secret_key_with_32_chars_minimum",
		SuperuserID: "admin123",
	}
	if err := cfg.ValidateProductionSecurity(); err == nil {
		t.Error("expected error for sslmode=disable in production")
	}

	cfg.DBSSLMode = "require"
	if err := cfg.ValidateProductionSecurity(); err != nil {
		t.Errorf("ValidateProductionSecurity() error = %v", err)
	}

	cfg.AppEnv = "development"
	cfg.DBSSLMode = "disable"
	if err := cfg.ValidateProductionSecurity(); err != nil {
		t.Errorf("development should skip production checks, got %v", err)
	}
}
