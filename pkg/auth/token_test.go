package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/cardapy-backend/pkg/config"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{Secret: "secret", Issuer: "cardapy", TTL: time.Hour}
}

func TestMintAndParseSessionToken(t *testing.T) {
	cfg := testSessionConfig()
	id := NewSessionID()

	token, err := MintSessionToken(cfg, time.Now(), "bobscafe", id)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := ParseSessionToken(cfg, "bobscafe", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SessionID() != id {
		t.Fatalf("expected session %s, got %s", id, claims.SessionID())
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
}

func TestParseSessionTokenRejectsOtherTenant(t *testing.T) {
	cfg := testSessionConfig()
	token, err := MintSessionToken(cfg, time.Now(), "bobscafe", NewSessionID())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseSessionToken(cfg, "pizzaria", token); err == nil {
		t.Fatalf("token of one subdomain must not open another")
	}
}

func TestParseSessionTokenRejectsExpiredAndForged(t *testing.T) {
	cfg := testSessionConfig()
	expired, err := MintSessionToken(cfg, time.Now().Add(-2*time.Hour), "bobscafe", NewSessionID())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseSessionToken(cfg, "bobscafe", expired); err == nil {
		t.Fatalf("expired token accepted")
	}

	forgedCfg := cfg
	forgedCfg.Secret = "other"
	forged, _ := MintSessionToken(forgedCfg, time.Now(), "bobscafe", NewSessionID())
	if _, err := ParseSessionToken(cfg, "bobscafe", forged); err == nil {
		t.Fatalf("forged token accepted")
	}
}

func TestMintSessionTokenValidatesConfig(t *testing.T) {
	if _, err := MintSessionToken(config.SessionConfig{TTL: time.Hour}, time.Now(), "x", "id"); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := MintSessionToken(testSessionConfig(), time.Now(), "x", " "); err == nil {
		t.Fatalf("expected missing session id error")
	}
}
