package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"lexora.org/internal/account"
)

func withSecret(t *testing.T, value string) {
	t.Helper()
	t.Setenv("LEXORA_AUTH_SECRET", value)
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	withSecret(t, "unit-test-secret")

	perms := account.DefaultPermissions(account.KindAffiliatedLawyer)
	perms.Billing = false
	id := Identity{
		AccountID:   "acct-9",
		Email:       "assoc@acme.law",
		Kind:        account.KindAffiliatedLawyer,
		Status:      account.StatusApproved,
		Permissions: perms,
		Firm:        &FirmContext{ID: "firm-1", Name: "Acme Law"},
	}

	stamp, expiresAt, err := Issue(id, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if until := time.Until(expiresAt); until <= 0 || until > time.Hour {
		t.Fatalf("unexpected expiry window: %v", until)
	}

	claims, err := ParseAndValidate(stamp)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "acct-9" || claims.Email != "assoc@acme.law" {
		t.Fatalf("identity not preserved: %+v", claims)
	}
	if claims.Kind != account.KindAffiliatedLawyer || claims.Status != account.StatusApproved {
		t.Fatalf("kind/status not preserved: %+v", claims)
	}
	if claims.Permissions != perms {
		t.Fatalf("permissions not preserved: %+v", claims.Permissions)
	}
	if claims.Firm == nil || claims.Firm.ID != "firm-1" || claims.Firm.Name != "Acme Law" {
		t.Fatalf("firm context not preserved: %+v", claims.Firm)
	}
	if claims.ID == "" {
		t.Fatalf("expected a jti")
	}
}

func TestIssueDefaultsTTL(t *testing.T) {
	withSecret(t, "unit-test-secret")

	_, expiresAt, err := Issue(Identity{AccountID: "acct-1", Kind: account.KindIndependent}, 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if until := time.Until(expiresAt); until < DefaultTTL-time.Minute {
		t.Fatalf("expected default TTL, got %v", until)
	}
}

func TestIssueRequiresAccountID(t *testing.T) {
	withSecret(t, "unit-test-secret")
	if _, _, err := Issue(Identity{}, time.Hour); err == nil {
		t.Fatalf("expected error for missing account id")
	}
}

func TestParseRejectsTampering(t *testing.T) {
	withSecret(t, "unit-test-secret")

	stamp, _, err := Issue(Identity{AccountID: "acct-1", Kind: account.KindIndependent}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(stamp, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected stamp shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := ParseAndValidate(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty stamp: expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage stamp: expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	withSecret(t, "unit-test-secret")

	stamp, _, err := Issue(Identity{AccountID: "acct-1", Kind: account.KindIndependent}, time.Nanosecond)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := ParseAndValidate(stamp); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired stamp, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	withSecret(t, "")

	if _, _, err := Issue(Identity{AccountID: "acct-1", Kind: account.KindIndependent}, time.Hour); err == nil {
		t.Fatalf("expected error with no secret configured")
	}
}

func TestSecretChangeInvalidatesStamp(t *testing.T) {
	withSecret(t, "first-secret")
	stamp, _, err := Issue(Identity{AccountID: "acct-1", Kind: account.KindIndependent}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	t.Setenv("LEXORA_AUTH_SECRET", "second-secret")
	ResetSecretForTests()
	if _, err := ParseAndValidate(stamp); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after secret rotation, got %v", err)
	}
}

func TestClaimsContextRoundTrip(t *testing.T) {
	withSecret(t, "unit-test-secret")

	stamp, _, err := Issue(Identity{AccountID: "acct-1", Kind: account.KindIndependent}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := ParseAndValidate(stamp)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}

	ctx := ContextWithClaims(t.Context(), claims)
	got, ok := ClaimsFromContext(ctx)
	if !ok || got.Subject != "acct-1" {
		t.Fatalf("claims round trip failed: ok=%v got=%+v", ok, got)
	}
	ctx = ContextWithRaw(ctx, stamp)
	raw, ok := RawFromContext(ctx)
	if !ok || raw != stamp {
		t.Fatalf("raw round trip failed")
	}

	if _, ok := ClaimsFromContext(t.Context()); ok {
		t.Fatalf("claims found in empty context")
	}
}
