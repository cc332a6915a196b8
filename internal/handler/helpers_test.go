package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	authpkg "github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

type fakeUserRepo struct {
	byEmail map[string]*model.User
	byID    map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]*model.User{}, byID: map[string]*model.User{}}
}

func (r *fakeUserRepo) add(user *model.User) {
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, service.ErrUserNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, service.ErrUserNotFound
}

type fakeClientRepo struct {
	clients map[string]*model.ClientRegistration
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: map[string]*model.ClientRegistration{}}
}

func (r *fakeClientRepo) Create(_ context.Context, client *model.ClientRegistration) error {
	r.clients[client.ClientUUID] = client
	return nil
}

func (r *fakeClientRepo) GetByUUID(_ context.Context, clientUUID string) (*model.ClientRegistration, error) {
	if c, ok := r.clients[clientUUID]; ok {
		return c, nil
	}
	return nil, service.ErrClientNotFound
}

func (r *fakeClientRepo) TouchLastSeen(_ context.Context, _ string, _ time.Time, _ string) error {
	return nil
}

func (r *fakeClientRepo) Deactivate(_ context.Context, clientUUID string) error {
	c, ok := r.clients[clientUUID]
	if !ok {
		return service.ErrClientNotFound
	}
	c.IsActive = false
	return nil
}

func (r *fakeClientRepo) List(_ context.Context, _, _ int) ([]*model.ClientRegistration, error) {
	out := make([]*model.ClientRegistration, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out, nil
}

type testEnv struct {
	router   *gin.Engine
	tokens   *authpkg.TokenService
	users    *fakeUserRepo
	clients  *fakeClientRepo
	recorder *service.Recorder
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tokens := authpkg.NewTokenServiceWithKeys(key, &key.PublicKey,
		"authgate", "authgate-clients", 15*time.Minute, 7*24*time.Hour)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "development"},
		RequestLog: config.RequestLogConfig{
			Dir:                t.TempDir(),
			Capacity:           100,
			SaveSuccessRequest: true,
			SaveErrorRequest:   true,
			SaveErrorResponse:  true,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	recorder, err := service.NewRecorder(cfg.RequestLog)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	t.Cleanup(recorder.Close)

	users := newFakeUserRepo()
	clientRepo := newFakeClientRepo()
	clients := service.NewClientRegistry(clientRepo, nil, cfg.RateLimit)
	authSvc := service.NewAuthService(users, tokens)

	router := NewRouter(RouterDeps{
		Cfg:      cfg,
		Tokens:   tokens,
		Clients:  clients,
		AuthSvc:  authSvc,
		Recorder: recorder,
	})

	return &testEnv{
		router:   router,
		tokens:   tokens,
		users:    users,
		clients:  clientRepo,
		recorder: recorder,
	}
}

// seedUser adds a user with a known password and returns it.
func (e *testEnv) seedUser(t *testing.T, email, password string, role model.Role) *model.User {
	t.Helper()
	hash, err := authpkg.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &model.User{
		ID:           "user-" + string(role),
		Email:        email,
		Name:         "Test " + string(role),
		PasswordHash: hash,
		Role:         role,
	}
	e.users.add(user)
	return user
}

func (e *testEnv) seedClient(active bool) *model.ClientRegistration {
	client := &model.ClientRegistration{
		ClientUUID: "11111111-2222-3333-4444-555555555555",
		ClientType: "test_suite",
		IsActive:   active,
	}
	e.clients.clients[client.ClientUUID] = client
	return client
}

func (e *testEnv) accessToken(t *testing.T, user *model.User) string {
	t.Helper()
	token, _, err := e.tokens.Issue(user, authpkg.TokenTypeAccess)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) refreshToken(t *testing.T, user *model.User) string {
	t.Helper()
	token, _, err := e.tokens.Issue(user, authpkg.TokenTypeRefresh)
	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func authHeaders(clientUUID, token string) map[string]string {
	h := map[string]string{}
	if clientUUID != "" {
		h[middleware.HeaderClientID] = clientUUID
	}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json response %q: %v", rec.Body.String(), err)
	}
	return out
}
