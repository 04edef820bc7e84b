package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mallhive/mallhive-backend/pkg/config"
	"github.com/mallhive/mallhive-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "mallhive-test",
		ExpirationMinutes: 15,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	shopID := uuid.New()
	payload := AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleManager,
		ShopID: &shopID,
	}

	signed, err := MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != payload.UserID {
		t.Fatalf("expected user id %s, got %s", payload.UserID, claims.UserID)
	}
	if claims.Role != enums.UserRoleManager {
		t.Fatalf("expected role manager, got %s", claims.Role)
	}
	if claims.ShopID == nil || *claims.ShopID != shopID {
		t.Fatalf("expected shop id %s, got %v", shopID, claims.ShopID)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti to be assigned")
	}
}

func TestMintAccessTokenRejectsInvalidRole(t *testing.T) {
	t.Parallel()

	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRole("superuser"),
	})
	if err == nil || !strings.Contains(err.Error(), "invalid user role") {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleShopper,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleShopper,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}
