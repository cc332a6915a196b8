package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/model"
	"github.com/google/uuid"
)

func TestLoginIssuesTokenPair(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user@example.com", "password123", model.RoleUser)

	rec := env.do(t, "POST", "/auth/login",
		map[string]string{"email": "user@example.com", "password": "password123"}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	access, _ := body["accessToken"].(string)
	refresh, _ := body["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("token pair missing: %v", body)
	}
	user, ok := body["user"].(map[string]any)
	if !ok || user["email"] != "user@example.com" {
		t.Fatalf("user block missing: %v", body)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password material leaked into response: %s", rec.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user@example.com", "password123", model.RoleUser)

	rec := env.do(t, "POST", "/auth/login",
		map[string]string{"email": "user@example.com", "password": "nope1234"}, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "AUTH_FAILED" {
		t.Fatalf("code = %v", body["code"])
	}
	// Unknown email must be indistinguishable from a wrong password.
	rec2 := env.do(t, "POST", "/auth/login",
		map[string]string{"email": "ghost@example.com", "password": "nope1234"}, nil)
	if rec2.Code != http.StatusUnauthorized || decodeBody(t, rec2)["code"] != "AUTH_FAILED" {
		t.Fatalf("unknown email leaked: %d %s", rec2.Code, rec2.Body.String())
	}
}

func TestLoginMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "POST", "/auth/login", map[string]string{"email": "not-an-email"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["code"] != "VALIDATION_FAILED" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestProtectedRouteWithoutClientHeader(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/auth/test", nil, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "MISSING_CLIENT_ID" {
		t.Fatalf("code = %v", body["code"])
	}
	if body["statusCode"] != float64(401) {
		t.Fatalf("envelope statusCode = %v", body["statusCode"])
	}
	if body["requestId"] == "" {
		t.Fatal("envelope missing requestId")
	}
}

func TestProtectedRouteUnknownClient(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/auth/test", nil, authHeaders(uuid.New().String(), ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["code"] != "UNKNOWN_CLIENT" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestProtectedRouteDisabledClient(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.seedClient(false)
	rec := env.do(t, "GET", "/auth/test", nil, authHeaders(client.ClientUUID, ""))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["code"] != "CLIENT_DISABLED" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestProtectedRouteBadToken(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.seedClient(true)
	rec := env.do(t, "GET", "/auth/test", nil, authHeaders(client.ClientUUID, "not.a.jwt"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["code"] != "INVALID_TOKEN" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestProtectedRouteFullPipeline(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.seedClient(true)
	user := env.seedUser(t, "user@example.com", "password123", model.RoleUser)

	rec := env.do(t, "GET", "/auth/test", nil,
		authHeaders(client.ClientUUID, env.accessToken(t, user)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "authenticated" || body["email"] != user.Email {
		t.Fatalf("body = %v", body)
	}
	if body["client_uuid"] != client.ClientUUID {
		t.Fatalf("client uuid missing: %v", body)
	}
	if rec.Header().Get(middleware.HeaderRequestID) == "" {
		t.Fatal("correlation header missing on success response")
	}
}

func TestPublicRouteBypassesValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	// Garbage credentials must not matter on a public route.
	rec := env.do(t, "GET", "/auth/public", nil, authHeaders("bogus-client", "bogus-token"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["status"] != "public" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestRefreshRequiresRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.seedClient(true)
	user := env.seedUser(t, "user@example.com", "password123", model.RoleUser)

	// Access token on the refresh route is a type mismatch.
	rec := env.do(t, "POST", "/auth/refresh", nil,
		authHeaders(client.ClientUUID, env.accessToken(t, user)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["code"] != "INVALID_TOKEN_TYPE" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = env.do(t, "POST", "/auth/refresh", nil,
		authHeaders(client.ClientUUID, env.refreshToken(t, user)))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["accessToken"].(string)
	if token == "" {
		t.Fatalf("no access token in refresh response: %v", body)
	}
	if _, err := env.tokens.Validate(token, "access"); err != nil {
		t.Fatalf("refreshed token does not verify as access: %v", err)
	}
}

func TestRefreshRejectsDeletedSubject(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.seedClient(true)
	user := &model.User{ID: "gone", Email: "gone@example.com", Role: model.RoleUser}
	token := env.refreshToken(t, user) // subject never added to the repo

	rec := env.do(t, "POST", "/auth/refresh", nil, authHeaders(client.ClientUUID, token))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["code"] != "INVALID_TOKEN" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestRegisterClient(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "POST", "/auth/register-client",
		map[string]string{"clientType": "mobile_app", "clientDescription": "demo build"}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	clientUUID, _ := body["clientUuid"].(string)
	if _, err := uuid.Parse(clientUUID); err != nil {
		t.Fatalf("clientUuid not a uuid: %q", clientUUID)
	}
	if body["isActive"] != true || body["clientType"] != "mobile_app" {
		t.Fatalf("body = %v", body)
	}

	// The new registration must pass the guard immediately.
	user := env.seedUser(t, "user@example.com", "password123", model.RoleUser)
	rec2 := env.do(t, "GET", "/auth/test", nil,
		authHeaders(clientUUID, env.accessToken(t, user)))
	if rec2.Code != http.StatusOK {
		t.Fatalf("fresh client rejected: %d %s", rec2.Code, rec2.Body.String())
	}
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.seedClient(true)
	plain := env.seedUser(t, "user@example.com", "password123", model.RoleUser)
	admin := env.seedUser(t, "admin@example.com", "admin123", model.RoleAdmin)
	super := env.seedUser(t, "super@example.com", "super123", model.RoleSuperAdmin)

	// Plain user is shut out of admin surface, with the roles named.
	rec := env.do(t, "GET", "/monitoring/stats", nil,
		authHeaders(client.ClientUUID, env.accessToken(t, plain)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user role status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "INSUFFICIENT_ROLE" {
		t.Fatalf("body = %s", rec.Body.String())
	}
	details, _ := body["details"].(map[string]any)
	if details["actual_role"] != "user" {
		t.Fatalf("details = %v", details)
	}

	for _, u := range []*model.User{admin, super} {
		rec := env.do(t, "GET", "/monitoring/stats", nil,
			authHeaders(client.ClientUUID, env.accessToken(t, u)))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s blocked from monitoring: %d %s", u.Role, rec.Code, rec.Body.String())
		}
	}

	// Deactivation is superadmin-only; admin does not pass, superadmin does.
	rec = env.do(t, "DELETE", "/auth/clients/"+client.ClientUUID, nil,
		authHeaders(client.ClientUUID, env.accessToken(t, admin)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin deactivate status = %d", rec.Code)
	}
	rec = env.do(t, "DELETE", "/auth/clients/"+client.ClientUUID, nil,
		authHeaders(client.ClientUUID, env.accessToken(t, super)))
	if rec.Code != http.StatusOK {
		t.Fatalf("superadmin deactivate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env.clients.clients[client.ClientUUID].IsActive {
		t.Fatal("client still active after deactivation")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.seedClient(true)
	user := env.seedUser(t, "user@example.com", "password123", model.RoleUser)

	token, _, err := env.tokens.Issue(user, "access")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Replace the signature segment.
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + "AAAA"

	rec := env.do(t, "GET", "/auth/test", nil, authHeaders(client.ClientUUID, tampered))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["code"] != "INVALID_TOKEN" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestNotFoundRouteGetsEnvelopeAndLogEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/does-not-exist", nil, nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != "NOT_FOUND" || body["statusCode"] != float64(404) {
		t.Fatalf("body = %s", rec.Body.String())
	}

	reqID := rec.Header().Get(middleware.HeaderRequestID)
	entry, ok := env.recorder.Get(reqID)
	if !ok {
		t.Fatal("unmatched route produced no log entry")
	}
	if entry.StatusCode != 404 || entry.Error == nil || entry.Error.Name != "NOT_FOUND" {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestNoisePathsAreNotLogged(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/favicon.ico", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.recorder.Size() != 0 {
		t.Fatalf("noise path logged, index size = %d", env.recorder.Size())
	}
}

func TestRequestIDEchoedWhenProvided(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/health", nil,
		map[string]string{middleware.HeaderRequestID: "caller-supplied-id"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(middleware.HeaderRequestID); got != "caller-supplied-id" {
		t.Fatalf("request id not echoed: %q", got)
	}
	if _, ok := env.recorder.Get("caller-supplied-id"); !ok {
		t.Fatal("entry not indexed by the supplied id")
	}
}

func TestRateLimitPerClient(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, QPS: 1, Burst: 1}
	})
	client := env.seedClient(true)
	user := env.seedUser(t, "user@example.com", "password123", model.RoleUser)
	headers := authHeaders(client.ClientUUID, env.accessToken(t, user))

	if rec := env.do(t, "GET", "/auth/test", nil, headers); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec := env.do(t, "GET", "/auth/test", nil, headers)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if decodeBody(t, rec)["code"] != "RATE_LIMITED" {
		t.Fatalf("body = %s", rec.Body.String())
	}

	// Public routes stay reachable; the limiter binds to the client check.
	if rec := env.do(t, "GET", "/health", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestLoginBodyRedactedInLog(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user@example.com", "password123", model.RoleUser)

	rec := env.do(t, "POST", "/auth/login",
		map[string]string{"email": "user@example.com", "password": "password123"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	reqID := rec.Header().Get(middleware.HeaderRequestID)
	entry, ok := env.recorder.Get(reqID)
	if !ok {
		t.Fatal("login request not logged")
	}
	if strings.Contains(entry.RequestBody, "password123") {
		t.Fatalf("credential persisted in log entry: %s", entry.RequestBody)
	}
	if !strings.Contains(entry.RequestBody, "***") {
		t.Fatalf("redaction marker missing: %s", entry.RequestBody)
	}
	if entry.StatusCode != 200 {
		t.Fatalf("logged status = %d", entry.StatusCode)
	}
}
