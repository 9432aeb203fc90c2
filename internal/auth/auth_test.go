package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-portal/internal/model"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", "eventportal", time.Hour)
	token, err := m.Issue("user-1", model.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-1" || id.Role != model.RoleAdmin {
		t.Fatalf("identity = %+v", id)
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", "eventportal", time.Hour)
	if _, err := m.Issue(" ", model.RoleUser); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := m.Issue("user-1", model.Role("root")); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	issuer := NewTokenManager("secret", "eventportal", time.Hour)
	token, err := issuer.Issue("user-1", model.RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	expired := NewTokenManager("secret", "eventportal", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := []struct {
		name     string
		verifier *TokenManager
		token    string
	}{
		{name: "wrong secret", verifier: NewTokenManager("other", "eventportal", time.Hour), token: token},
		{name: "wrong issuer", verifier: NewTokenManager("secret", "someone-else", time.Hour), token: token},
		{name: "expired", verifier: expired, token: token},
		{name: "garbage", verifier: issuer, token: "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.verifier.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("error = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}

func TestIdentityContext(t *testing.T) {
	t.Parallel()

	if id := IdentityFrom(context.Background()); !id.IsZero() {
		t.Fatalf("identity = %+v, want zero", id)
	}
	want := model.Identity{UserID: "u", Role: model.RoleUser}
	if got := IdentityFrom(WithIdentity(context.Background(), want)); got != want {
		t.Fatalf("identity = %+v, want %+v", got, want)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
