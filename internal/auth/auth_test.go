package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{Username: "user", Password: "password"}

	subject, err := v.Verify("user", "password")
	if err != nil {
		t.Fatalf("verify valid pair: %v", err)
	}
	if subject != "user" {
		t.Fatalf("subject = %q, want user", subject)
	}

	cases := [][2]string{
		{"user", "wrong"},
		{"wrong", "password"},
		{"", ""},
		{"admin", "admin"},
	}
	for _, c := range cases {
		if _, err := v.Verify(c[0], c[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("verify(%q,%q) = %v, want ErrInvalidCredentials", c[0], c[1], err)
		}
	}
}

func TestIssueAuthenticateRoundTrip(t *testing.T) {
	issuer := Issuer{Secret: "test-secret", TTL: time.Hour}
	token, err := issuer.Issue("user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("token has %d parts, want 3", len(parts))
	}

	subject, err := Authenticator{Secret: "test-secret"}.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if subject != "user" {
		t.Fatalf("subject = %q, want user", subject)
	}
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	issued := time.Now().Add(-20 * time.Hour)
	issuer := Issuer{Secret: "test-secret", TTL: 10 * time.Hour, Now: func() time.Time { return issued }}
	token, err := issuer.Issue("user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := (Authenticator{Secret: "test-secret"}).Authenticate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("authenticate expired = %v, want ErrTokenExpired", err)
	}

	// Same token is valid when checked just before the expiry instant.
	before := issued.Add(10*time.Hour - time.Second)
	a := Authenticator{Secret: "test-secret", Now: func() time.Time { return before }}
	if _, err := a.Authenticate(token); err != nil {
		t.Fatalf("authenticate before expiry: %v", err)
	}
}

func TestAuthenticateFailsClosed(t *testing.T) {
	issuer := Issuer{Secret: "test-secret", TTL: time.Hour}
	token, err := issuer.Issue("user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	a := Authenticator{Secret: "other-secret"}
	if _, err := a.Authenticate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret = %v, want ErrInvalidToken", err)
	}

	a = Authenticator{Secret: "test-secret"}
	for _, tok := range []string{"", "garbage", "a.b.c", token + "x"} {
		if _, err := a.Authenticate(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("authenticate(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestIssueDefaultTTL(t *testing.T) {
	issued := time.Now()
	issuer := Issuer{Secret: "test-secret", Now: func() time.Time { return issued }}
	token, err := issuer.Issue("user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Valid just before the 10 hour default, expired just after.
	a := Authenticator{Secret: "test-secret", Now: func() time.Time { return issued.Add(DefaultTokenTTL - time.Minute) }}
	if _, err := a.Authenticate(token); err != nil {
		t.Fatalf("authenticate within default ttl: %v", err)
	}
	a.Now = func() time.Time { return issued.Add(DefaultTokenTTL + time.Minute) }
	if _, err := a.Authenticate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("authenticate past default ttl = %v, want ErrTokenExpired", err)
	}
}
