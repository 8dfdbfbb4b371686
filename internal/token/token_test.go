package token

import (
	"database/sql"
	"testing"
	"time"

	"github.com/iliyamo/tour-booking-api/internal/config"
	"github.com/iliyamo/tour-booking-api/internal/model"
)

func testIssuer() Issuer {
	return NewIssuer(config.Config{
		AccessSecret:   "access-secret-for-tests",
		RefreshSecret:  "refresh-secret-for-tests",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
	})
}

func testUser() model.User {
	return model.User{ID: 42, Name: "Ada", Email: "ada@example.com", Role: model.RoleUser}
}

func TestAccessRoundTrip(t *testing.T) {
	iss := testIssuer()
	tok, err := iss.Access(testUser())
	if err != nil {
		t.Fatalf("Access: %v", err)
	}
	sess, err := iss.ParseAccess(tok.Value)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if sess.UserID != 42 || sess.Email != "ada@example.com" || sess.Role != model.RoleUser {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.IssuedAt.IsZero() {
		t.Fatal("issued-at claim missing")
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	iss := testIssuer()
	tok, err := iss.Refresh(testUser())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	sess, err := iss.ParseRefresh(tok.Value)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if sess.UserID != 42 || sess.Email != "ada@example.com" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Role != "" {
		t.Fatalf("refresh token should not carry a role, got %q", sess.Role)
	}
}

func TestSecretsAreNotInterchangeable(t *testing.T) {
	iss := testIssuer()
	access, _ := iss.Access(testUser())
	refresh, _ := iss.Refresh(testUser())

	if _, err := iss.ParseRefresh(access.Value); err == nil {
		t.Fatal("access token accepted by refresh parser")
	}
	if _, err := iss.ParseAccess(refresh.Value); err == nil {
		t.Fatal("refresh token accepted by access parser")
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	iss := testIssuer()
	tok, _ := iss.Access(testUser())
	tampered := tok.Value[:len(tok.Value)-2] + "xx"
	if _, err := iss.ParseAccess(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}

func TestHashIsStableAndOpaque(t *testing.T) {
	a := Hash("some-token")
	b := Hash("some-token")
	if a != b {
		t.Fatal("hash is not deterministic")
	}
	if a == "some-token" || len(a) != 64 {
		t.Fatalf("unexpected hash %q", a)
	}
	if Hash("other-token") == a {
		t.Fatal("distinct tokens hashed equal")
	}
}

func TestChangedPasswordAfter(t *testing.T) {
	changed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := model.User{PasswordChangedAt: sql.NullTime{Time: changed, Valid: true}}

	if !u.ChangedPasswordAfter(changed.Add(-time.Hour)) {
		t.Fatal("token issued before the change should be stale")
	}
	if u.ChangedPasswordAfter(changed.Add(time.Hour)) {
		t.Fatal("token issued after the change should stay valid")
	}
	if u.ChangedPasswordAfter(changed) {
		t.Fatal("token issued at the exact change second should stay valid")
	}

	never := model.User{}
	if never.ChangedPasswordAfter(time.Now()) {
		t.Fatal("user without a change timestamp should never invalidate")
	}
}
