package api_test

import (
	"context"
	"net/http"
	"testing"

	"taeu.kr/portal/internal/api"
	"taeu.kr/portal/internal/api/apitest"
	"taeu.kr/portal/internal/credential"
	"taeu.kr/portal/internal/gateway"
	"taeu.kr/portal/internal/storage/memory"
)

func setupClient(t *testing.T) (*api.Client, *credential.Store, *apitest.Server) {
	t.Helper()

	upstream := apitest.NewServer()
	t.Cleanup(upstream.Close)

	creds := credential.NewStore(memory.New())
	gw := gateway.New(gateway.Config{BaseURL: upstream.BaseURL()}, creds, nil)
	return api.NewClient(gw), creds, upstream
}

func TestLogin(t *testing.T) {
	client, _, upstream := setupClient(t)
	upstream.AddUser("alice", "pw")

	pair, err := client.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if upstream.Calls(http.MethodPost, "/token/") != 1 {
		t.Fatal("expected one POST /token/")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	client, _, upstream := setupClient(t)
	upstream.AddUser("alice", "pw")

	_, err := client.Login(context.Background(), api.LoginRequest{Username: "alice", Password: "wrong"})
	if !gateway.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	client, _, upstream := setupClient(t)

	resp, err := client.Register(context.Background(), api.RegisterRequest{
		Username:  "bob",
		Email:     "bob@example.com",
		Password:  "secret1",
		Password2: "secret1",
		FirstName: "Bob",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.User.Username != "bob" || resp.User.ID == 0 {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if resp.Access != "" {
		t.Fatal("expected no tokens from default register")
	}
	if upstream.Calls(http.MethodPost, "/register/") != 1 {
		t.Fatal("expected one POST /register/")
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	client, _, upstream := setupClient(t)
	upstream.AddUser("bob", "secret1")

	_, err := client.Register(context.Background(), api.RegisterRequest{
		Username:  "bob",
		Email:     "bob@example.com",
		Password:  "secret1",
		Password2: "secret2",
	})
	statusErr, ok := gateway.AsStatusError(err)
	if !ok || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 status error, got %v", err)
	}
	if len(statusErr.Fields["username"]) == 0 || len(statusErr.Fields["password"]) == 0 {
		t.Fatalf("expected username and password field errors, got %v", statusErr.Fields)
	}
}

func TestProfileAndUpdate(t *testing.T) {
	client, creds, upstream := setupClient(t)
	upstream.AddUser("alice", "pw")
	ctx := context.Background()

	pair, err := client.Login(ctx, api.LoginRequest{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = creds.SetTokens(ctx, pair.Access, pair.Refresh)

	user, err := client.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected profile: %+v", user)
	}

	first := "Alice"
	updated, err := client.UpdateProfile(ctx, api.UpdateProfileRequest{FirstName: &first})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.User.FirstName != "Alice" || updated.User.DisplayName() != "Alice" {
		t.Fatalf("unexpected updated user: %+v", updated.User)
	}
}

func TestProfile_WithoutTokenIsUnauthorized(t *testing.T) {
	client, _, _ := setupClient(t)

	if _, err := client.Profile(context.Background()); !gateway.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	client, creds, upstream := setupClient(t)
	upstream.AddUser("alice", "pw")
	ctx := context.Background()

	pair, _ := client.Login(ctx, api.LoginRequest{Username: "alice", Password: "pw"})
	_ = creds.SetTokens(ctx, pair.Access, pair.Refresh)

	_, err := client.ChangePassword(ctx, api.ChangePasswordRequest{OldPassword: "bad", NewPassword: "pw2", NewPassword2: "pw2"})
	if statusErr, ok := gateway.AsStatusError(err); !ok || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong old password, got %v", err)
	}

	if _, err := client.ChangePassword(ctx, api.ChangePasswordRequest{OldPassword: "pw", NewPassword: "pw2", NewPassword2: "pw2"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := client.Login(ctx, api.LoginRequest{Username: "alice", Password: "pw2"}); err != nil {
		t.Fatalf("expected login with the new password, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	client, _, upstream := setupClient(t)
	upstream.AddUser("alice", "pw")
	ctx := context.Background()

	pair, _ := client.Login(ctx, api.LoginRequest{Username: "alice", Password: "pw"})

	refreshed, err := client.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Access == "" || refreshed.Access == pair.Access {
		t.Fatalf("expected a new access token, got %+v", refreshed)
	}

	if _, err := client.Refresh(ctx, "not-a-refresh-token"); !gateway.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized for bad refresh token, got %v", err)
	}
}

func TestLogoutAndHealth(t *testing.T) {
	client, creds, upstream := setupClient(t)
	upstream.AddUser("alice", "pw")
	ctx := context.Background()

	pair, _ := client.Login(ctx, api.LoginRequest{Username: "alice", Password: "pw"})
	_ = creds.SetTokens(ctx, pair.Access, pair.Refresh)

	msg, err := client.Logout(ctx)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if msg.Message == "" {
		t.Fatal("expected logout acknowledgement")
	}

	health, err := client.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", health.Status)
	}
}

func TestUserDisplayName(t *testing.T) {
	testCases := []struct {
		name string
		user api.User
		want string
	}{
		{name: "full name", user: api.User{Username: "a", FirstName: "Ann", LastName: "Lee"}, want: "Ann Lee"},
		{name: "first name", user: api.User{Username: "a", FirstName: "Ann"}, want: "Ann"},
		{name: "username", user: api.User{Username: "a"}, want: "a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.user.DisplayName(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
