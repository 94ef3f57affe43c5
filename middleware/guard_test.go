package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	tokensmith "github.com/tokensmith/tokensmith"
	"github.com/tokensmith/tokensmith/identity"
	"github.com/tokensmith/tokensmith/token"
)

type memoryIdentities struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*identity.Identity
}

func newMemoryIdentities() *memoryIdentities {
	return &memoryIdentities{byID: map[string]*identity.Identity{}}
}

func (m *memoryIdentities) Create(_ context.Context, email, passwordHash string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ident := range m.byID {
		if strings.EqualFold(ident.Email, email) {
			return nil, identity.ErrEmailTaken
		}
	}
	m.nextID++
	ident := &identity.Identity{
		ID:           "id-" + strconv.Itoa(m.nextID),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.byID[ident.ID] = ident
	return ident, nil
}

func (m *memoryIdentities) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ident := range m.byID {
		if strings.EqualFold(ident.Email, email) {
			return ident, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (m *memoryIdentities) FindByID(_ context.Context, id string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ident, ok := m.byID[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return ident, nil
}

func newTestEngine(t *testing.T) *tokensmith.Engine {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	engine, err := tokensmith.New().
		WithConfig(tokensmith.Config{
			Token: token.Config{
				AccessSecret:  []byte("guard-access-secret-0123456789abcdef"),
				RefreshSecret: []byte("guard-refresh-secret-0123456789abcde"),
			},
		}).
		WithRedis(rdb).
		WithIdentityProvider(newMemoryIdentities()).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok || res.OwnerID == "" {
			t.Error("auth result missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.Register(context.Background(), "alice@example.com", "P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+res.Pair.AccessToken)
	rec := httptest.NewRecorder()

	RequireAuth(engine)(okHandler(t)).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthRejectsMissingAndMalformed(t *testing.T) {
	engine := newTestEngine(t)
	guard := RequireAuth(engine)(okHandler(t))

	for _, header := range []string{"", "Bearer ", "Basic abc", "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: want 401, got %d", header, rec.Code)
		}
	}
}

func TestRequireAuthRejectsTamperedToken(t *testing.T) {
	engine := newTestEngine(t)

	res, err := engine.Register(context.Background(), "alice@example.com", "P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	tampered := res.Pair.AccessToken[:len(res.Pair.AccessToken)-2] + "xx"
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tampered)
	rec := httptest.NewRecorder()

	RequireAuth(engine)(okHandler(t)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid token") {
		t.Fatalf("want invalid-token body, got %q", rec.Body.String())
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	seen = rec.Header().Get("X-Request-ID")
	if seen == "" {
		t.Fatal("expected generated request id")
	}

	// A provided ID is passed through untouched.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-supplied-1" {
		t.Fatalf("want pass-through id, got %q", got)
	}
}

func TestRefreshCookieRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	SetRefreshCookie(rec, "tok-value", time.Hour, false)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("want 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != RefreshCookieName || c.Value != "tok-value" || !c.HttpOnly || c.Path != "/auth" {
		t.Fatalf("unexpected cookie: %+v", c)
	}

	rec = httptest.NewRecorder()
	ClearRefreshCookie(rec, false)
	c = rec.Result().Cookies()[0]
	if c.Value != "" || c.MaxAge != -1 {
		t.Fatalf("clear cookie malformed: %+v", c)
	}
}
