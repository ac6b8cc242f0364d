package jwt

import (
	"errors"
	"testing"
	"time"

	"slatrack/backend/config"
)

func newTestManager(ttl time.Duration) *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret:       "test-secret-key-1234567890",
		ServiceTokenTTL: ttl,
	})
}

func TestManager_GenerateAndParse(t *testing.T) {
	mgr := newTestManager(time.Hour)

	token, err := mgr.GenerateServiceToken("ticket-service")
	if err != nil {
		t.Fatalf("签发令牌应成功: %v", err)
	}

	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("解析令牌应成功: %v", err)
	}
	if claims.ServiceName != "ticket-service" {
		t.Errorf("期望 service_name=ticket-service，实际=%s", claims.ServiceName)
	}
	if claims.ID == "" {
		t.Error("期望 jti 非空")
	}
}

func TestManager_ParseExpired(t *testing.T) {
	mgr := newTestManager(-time.Minute) // 签发即过期

	token, err := mgr.GenerateServiceToken("ticket-service")
	if err != nil {
		t.Fatalf("签发令牌应成功: %v", err)
	}

	_, err = mgr.ParseToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestManager_ParseWrongSecret(t *testing.T) {
	mgr := newTestManager(time.Hour)
	other := NewManager(&config.AuthConfig{
		JWTSecret:       "another-secret-key-0987654321",
		ServiceTokenTTL: time.Hour,
	})

	token, err := mgr.GenerateServiceToken("ticket-service")
	if err != nil {
		t.Fatalf("签发令牌应成功: %v", err)
	}

	_, err = other.ParseToken(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestManager_ParseGarbage(t *testing.T) {
	mgr := newTestManager(time.Hour)

	_, err := mgr.ParseToken("not-a-jwt")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}
