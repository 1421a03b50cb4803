package test

import (
	"net/http"
	"testing"

	"github.com/learnhub/lms/core/user"
)

func TestSignupAndSession(t *testing.T) {
	env, err := NewTestEnv(t, "auth_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	signup := map[string]string{
		"name":     "New Gopher",
		"email":    "new@test.com",
		"password": "gophers12345",
	}

	var usr user.User
	code, err := env.do(http.MethodPost, "/api/auth/signup", signup, &usr)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusCreated {
		t.Fatalf("signup: status code %d", code)
	}
	if usr.Email != signup["email"] || usr.ID == "" {
		t.Fatalf("unexpected signup response: %+v", usr)
	}

	// Signing up logs the user in.
	var current user.User
	if code, err = env.do(http.MethodGet, "/api/users/current", nil, &current); err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK || current.ID != usr.ID {
		t.Fatalf("current user after signup: code %d, user %+v", code, current)
	}

	// The email is taken now.
	if code, err = env.do(http.MethodPost, "/api/auth/signup", signup, nil); err != nil {
		t.Fatal(err)
	}
	if code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", code)
	}

	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	code, err = env.do(http.MethodGet, "/api/users/current", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusUnauthorized {
		t.Fatalf("current user after logout: expected 401, got %d", code)
	}

	// Wrong credentials are rejected without detail.
	if err := env.Login(signup["email"], "not-the-password"); err == nil {
		t.Fatal("login with a wrong password succeeded")
	}

	if err := env.Login(signup["email"], signup["password"]); err != nil {
		t.Fatal(err)
	}
}
